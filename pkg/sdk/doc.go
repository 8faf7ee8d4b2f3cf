// Package corpusq embeds corpusq search views in a Go process, backed by
// Redis with the search module.
//
// A view keeps a query model and a location (query string) in step: editing
// a filter pushes a new location, navigating to a location rewrites the
// filters. Filter defaults (range bounds, option lists) are resolved lazily
// from FT.AGGREGATE the first time a filter is activated.
//
//	client, _ := corpusq.New(ctx,
//	    corpusq.WithRedis("localhost:6379", ""),
//	    corpusq.WithCorpus(corpusq.Corpus{
//	        Name: "letters",
//	        Fields: []corpusq.Field{
//	            {Name: "content"},
//	            {Name: "year", Filter: corpusq.FilterRange},
//	            {Name: "genre", Filter: corpusq.FilterMultipleChoice},
//	        },
//	    }),
//	)
//	defer client.Close()
//
//	view, _ := client.OpenView("letters", "year=1900:1950")
//	_ = view.Activate(ctx, "genre")
//	_ = view.SetFilter("genre", corpusq.MultipleChoiceValue{Selected: []string{"poetry"}})
//	fmt.Println(view.State().Location) // genre=poetry&year=1900%3A1950
package corpusq
