package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link header values keyed by operation path.
type Links map[string][]string

// Add records a link from one path to another, once.
func (l Links) Add(from, to, rel string) {
	v := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	if !slices.Contains(l[from], v) {
		l[from] = append(l[from], v)
	}
}

// AutoLinks derives links from the registered OpenAPI paths. Call it after
// every route is registered. Operations tagged with one of skipTags (SSE
// streams, for instance) get no links.
//
//   - an item path links to its parent collection (collection, up)
//   - a collection links to its item paths (item) and to entry (up)
//   - item paths with PUT or PATCH link to themselves (edit)
//   - entry links to every collection plus the OpenAPI document and docs
func AutoLinks(api huma.API, entry string, skipTags ...string) Links {
	oapi := api.OpenAPI()
	links := Links{}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if slices.ContainsFunc(operations(pi), func(op *huma.Operation) bool {
			return slices.ContainsFunc(op.Tags, func(t string) bool { return slices.Contains(skipTags, t) })
		}) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			links.Add(item, parent, "collection")
			links.Add(item, parent, "up")
		}
		if pi := oapi.Paths[item]; pi.Put != nil || pi.Patch != nil {
			links.Add(item, item, "edit")
		}
	}
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				links.Add(coll, item, "item")
			}
		}
		if coll == entry {
			continue
		}
		links.Add(coll, entry, "up")
		links.Add(entry, coll, lastSegment(coll))
	}
	links.Add(entry, "/openapi.json", "describedby")
	links.Add(entry, "/openapi.json", "service-desc")
	links.Add(entry, "/docs", "service-doc")
	return links
}

// LinkTransformer returns a Huma transformer that writes the static links
// of the operation, a self link for item paths, paging links of a Pager
// body and the actions of an Actor body.
func LinkTransformer(links Links) huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func operations(pi *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}
