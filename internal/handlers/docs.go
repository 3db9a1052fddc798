package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func pathParam(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      map[string]string{"type": "string"},
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func paginatedSchema(item map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data":        map[string]interface{}{"type": "array", "items": item},
			"total":       map[string]string{"type": "integer"},
			"page":        map[string]string{"type": "integer"},
			"limit":       map[string]string{"type": "integer"},
			"total_pages": map[string]string{"type": "integer"},
		},
	}
}

func errorResponses() map[string]interface{} {
	errSchema := map[string]interface{}{"$ref": "#/components/schemas/Error"}
	return map[string]interface{}{
		"400": jsonResponse("Invalid request parameters", errSchema),
		"404": jsonResponse("Dataset or well not found", errSchema),
		"500": jsonResponse("Internal error", errSchema),
	}
}

func withResponses(ok map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	responses := errorResponses()
	responses["200"] = ok
	for code, resp := range extra {
		responses[code] = resp
	}
	return responses
}

// OpenAPISpec returns the OpenAPI 3.0 document for the wellstep API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	pageParams := []map[string]interface{}{
		queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
		queryParam("limit", "Records per page (default: 100, max: 1000)", map[string]interface{}{"type": "integer", "default": 100}),
	}
	datasetRef := map[string]interface{}{"$ref": "#/components/schemas/Dataset"}
	idParam := pathParam("id", "Dataset ID")
	wellParam := pathParam("well", "Well name")

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Wellstep API",
			"description": "Well production histories, zero-order-hold resampling and Nexus plot records",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/datasets": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List datasets",
					"parameters": pageParams,
					"responses":  withResponses(jsonResponse("Datasets, newest first", paginatedSchema(datasetRef)), nil),
				},
			},
			"/api/datasets/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get a dataset",
					"parameters": []map[string]interface{}{idParam},
					"responses":  withResponses(jsonResponse("Dataset", datasetRef), nil),
				},
			},
			"/api/datasets/{id}/wells": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List the wells of a history dataset",
					"parameters": []map[string]interface{}{idParam},
					"responses": withResponses(jsonResponse("Wells in first-appearance order", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"dataset_id": map[string]string{"type": "string"},
							"wells": map[string]interface{}{
								"type": "array",
								"items": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"well":              map[string]string{"type": "string"},
										"sample_count":      map[string]string{"type": "integer"},
										"first_observed_at": map[string]string{"type": "string", "format": "date-time"},
										"last_observed_at":  map[string]string{"type": "string", "format": "date-time"},
									},
								},
							},
						},
					}), nil),
				},
			},
			"/api/datasets/{id}/wells/{well}/observations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get the raw samples of a well",
					"parameters": append([]map[string]interface{}{
						idParam,
						wellParam,
						queryParam("start_date", "Earliest sample (YYYY-MM-DD or RFC3339)", map[string]interface{}{"type": "string"}),
						queryParam("end_date", "Latest sample (YYYY-MM-DD or RFC3339)", map[string]interface{}{"type": "string"}),
					}, pageParams...),
					"responses": withResponses(jsonResponse("Observations ordered by date", paginatedSchema(map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"well":         map[string]string{"type": "string"},
							"observed_at":  map[string]string{"type": "string", "format": "date-time"},
							"measurements": map[string]interface{}{"type": "object", "additionalProperties": map[string]interface{}{"type": "number", "nullable": true}},
							"attributes":   map[string]interface{}{"type": "object", "additionalProperties": map[string]string{"type": "string"}},
						},
					})), nil),
				},
			},
			"/api/datasets/{id}/wells/{well}/resampled": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Resample a well onto a fixed grid",
					"description": "Zero-order hold: each grid point takes the most recent sample at or before it. Points before the first sample are null.",
					"parameters": []map[string]interface{}{
						idParam,
						wellParam,
						queryParam("start", "Grid start (default: first sample)", map[string]interface{}{"type": "string"}),
						queryParam("step", "Grid spacing as a duration (default: 6h)", map[string]interface{}{"type": "string", "default": "6h"}),
						queryParam("points", "Number of grid points (default: 116)", map[string]interface{}{"type": "integer", "default": 116}),
						queryParam("format", "Response format", map[string]interface{}{"type": "string", "enum": []string{"json", "csv"}, "default": "json"}),
						queryParam("stored", "Return the grid saved by the last dataset resample for this step instead of recomputing", map[string]interface{}{"type": "boolean", "default": false}),
					},
					"responses": withResponses(map[string]interface{}{
						"description": "Resampled series",
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{"schema": map[string]interface{}{"type": "object"}},
							"text/csv":         map[string]interface{}{"schema": map[string]string{"type": "string"}},
						},
					}, map[string]interface{}{
						"422": jsonResponse("Series cannot be resampled", map[string]interface{}{"$ref": "#/components/schemas/Error"}),
					}),
				},
			},
			"/api/datasets/{id}/nexus": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get flattened Nexus plot records",
					"parameters": append([]map[string]interface{}{
						idParam,
						queryParam("classname", "Filter by class name", map[string]interface{}{"type": "string"}),
						queryParam("instancename", "Filter by instance name", map[string]interface{}{"type": "string"}),
						queryParam("varname", "Filter by variable name", map[string]interface{}{"type": "string"}),
					}, pageParams...),
					"responses": withResponses(jsonResponse("Records in file order", paginatedSchema(map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"timestep":     map[string]string{"type": "integer"},
							"time":         map[string]string{"type": "number"},
							"classname":    map[string]string{"type": "string"},
							"instancename": map[string]string{"type": "string"},
							"varname":      map[string]string{"type": "string"},
							"value":        map[string]string{"type": "number"},
						},
					})), nil),
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "API and database are healthy"},
						"503": map[string]interface{}{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{"schema": map[string]string{"type": "string"}},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"Dataset": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":         map[string]string{"type": "string", "format": "uuid"},
						"kind":       map[string]interface{}{"type": "string", "enum": []string{"history", "nexus"}},
						"source":     map[string]string{"type": "string"},
						"row_count":  map[string]string{"type": "integer"},
						"fields":     map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
						"created_at": map[string]string{"type": "string", "format": "date-time"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
