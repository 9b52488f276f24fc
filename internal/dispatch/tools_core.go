package dispatch

import (
	"context"

	"engram/internal/config"
)

// registerCoreTools wires liveness and introspection.
func registerCoreTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "ping",
		Description: "Liveness probe; returns pong.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			return "pong", nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_stats",
		Description: "Row counts per metadata table, point counts per vector collection, and engine identity.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			tables, err := svc.Store.GetStats()
			if err != nil {
				return nil, Translate(err)
			}

			collections := map[string]interface{}{}
			names, err := svc.Vectors.ListCollections()
			if err != nil {
				return nil, Translate(err)
			}
			for _, name := range names {
				count, err := svc.Vectors.Count(name, nil)
				if err != nil {
					return nil, Translate(err)
				}
				collections[name] = count
			}

			return map[string]interface{}{
				"tables":      tables,
				"collections": collections,
				"embedding": map[string]interface{}{
					"provider":   svc.Config.Embedding.Provider,
					"model":      svc.Config.Embedding.Model,
					"dimensions": svc.Engine.Dimensions(),
				},
				"server":  config.ServerName,
				"version": config.Version,
			}, nil
		},
	})
}
