package dispatch

import (
	"context"
	"errors"

	"engram/internal/cluster"
	"engram/internal/types"
	"engram/internal/values"
	"engram/internal/vector"
)

// registerValueTools wires value admission and the clustering queries values
// anchor to.
func registerValueTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "validate_value",
		Description: "Check a candidate value against its cluster centroid without storing it.",
		Schema: Schema{
			Required: []string{"text", "cluster_id"},
			Properties: map[string]Property{
				"text":       {Type: "string", Description: "Candidate value text."},
				"cluster_id": {Type: "string", Description: "Target cluster, formatted {axis}_{label}."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			text, terr := stringArg(args, "text")
			if terr != nil {
				return nil, terr
			}
			clusterID, terr := stringArg(args, "cluster_id")
			if terr != nil {
				return nil, terr
			}
			res, err := svc.Values.Validate(ctx, text, clusterID)
			if err != nil {
				return nil, Translate(err)
			}
			return validationObject(res), nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "store_value",
		Description: "Admit a value if its similarity to the cluster centroid clears the threshold.",
		Schema: Schema{
			Required: []string{"text", "cluster_id", "axis"},
			Properties: map[string]Property{
				"text":       {Type: "string", Description: "Value text."},
				"cluster_id": {Type: "string", Description: "Anchoring cluster, formatted {axis}_{label}."},
				"axis":       {Type: "string", Description: "Axis the value belongs to.", Enum: axisEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			text, terr := stringArg(args, "text")
			if terr != nil {
				return nil, terr
			}
			clusterID, terr := stringArg(args, "cluster_id")
			if terr != nil {
				return nil, terr
			}
			axis, terr := stringArg(args, "axis")
			if terr != nil {
				return nil, terr
			}
			value, res, err := svc.Values.Store(ctx, text, clusterID, axis)
			if err != nil {
				return nil, Translate(err)
			}
			out := map[string]interface{}{
				"stored":     value != nil,
				"validation": validationObject(res),
			}
			if value != nil {
				out["value"] = value
			}
			return out, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_values",
		Description: "List every admitted value, newest first.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			list, err := svc.Values.List()
			if err != nil {
				return nil, Translate(err)
			}
			if list == nil {
				list = []*types.Value{}
			}
			return map[string]interface{}{"values": list, "count": len(list)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "cluster_axis",
		Description: "Cluster one axis collection and return its labeled clusters.",
		Schema: Schema{
			Required: []string{"axis"},
			Properties: map[string]Property{
				"axis": {Type: "string", Description: "Axis collection to cluster.", Enum: axisEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			rawAxis, terr := stringArg(args, "axis")
			if terr != nil {
				return nil, terr
			}
			axis, err := types.ParseAxis(rawAxis)
			if err != nil {
				return nil, Translate(err)
			}
			res, err := svc.Clusters.ClusterAxis(axis)
			if errors.Is(err, vector.ErrCollectionNotFound) {
				return nil, Errorf(KindInsufficientData, "axis %s has no indexed entries", axis)
			}
			if err != nil {
				return nil, Translate(err)
			}
			if len(res.Result.Labels) == 0 {
				return nil, Errorf(KindInsufficientData, "axis %s has no indexed entries", axis)
			}
			return map[string]interface{}{
				"axis":        string(axis),
				"point_count": len(res.Result.Labels),
				"noise_count": res.Result.NoiseCount,
				"clusters":    clusterObjects(res),
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_clusters",
		Description: "Summarize the clusters of every axis. Axes with nothing indexed report zero points.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			axes := make([]map[string]interface{}, 0, len(types.Axes()))
			for _, axis := range types.Axes() {
				summary := map[string]interface{}{
					"axis":          string(axis),
					"point_count":   0,
					"cluster_count": 0,
					"noise_count":   0,
					"clusters":      []map[string]interface{}{},
				}
				res, err := svc.Clusters.ClusterAxis(axis)
				if errors.Is(err, vector.ErrCollectionNotFound) {
					axes = append(axes, summary)
					continue
				}
				if err != nil {
					return nil, Translate(err)
				}
				compact := make([]map[string]interface{}, 0, len(res.Result.Clusters))
				for _, cl := range res.Result.Clusters {
					compact = append(compact, map[string]interface{}{
						"cluster_id": res.ClusterID(cl.Label),
						"size":       cl.Size,
					})
				}
				summary["point_count"] = len(res.Result.Labels)
				summary["cluster_count"] = len(res.Result.Clusters)
				summary["noise_count"] = res.Result.NoiseCount
				summary["clusters"] = compact
				axes = append(axes, summary)
			}
			return map[string]interface{}{"axes": axes}, nil
		},
	})
}

// validationObject shapes an admission decision for the wire. Similarity is
// omitted when the centroid was unavailable, never serialized as null.
func validationObject(res *values.ValidationResult) map[string]interface{} {
	obj := map[string]interface{}{
		"valid":      res.Valid,
		"cluster_id": res.ClusterID,
	}
	if res.Similarity != nil {
		obj["similarity"] = *res.Similarity
	}
	return obj
}

// clusterObjects flattens a run's clusters, minting the printable ids.
// Centroids stay out of the envelope; they are embedding-sized vectors.
func clusterObjects(res *cluster.AxisResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(res.Result.Clusters))
	for _, cl := range res.Result.Clusters {
		out = append(out, map[string]interface{}{
			"cluster_id": res.ClusterID(cl.Label),
			"label":      cl.Label,
			"size":       cl.Size,
			"avg_weight": cl.AvgWeight,
			"member_ids": cl.MemberIDs,
		})
	}
	return out
}
