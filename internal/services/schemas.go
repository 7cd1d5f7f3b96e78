package services

// JSON schemas handed to the LLM as response_format so section payloads
// come back in the shapes internal/preprod decodes.

var castingSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"castMembers"},
  "properties": map[string]any{
    "castMembers": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"characterName"},
        "properties": map[string]any{
          "characterName": map[string]any{"type": "string"},
          "actorName":     map[string]any{"type": "string"},
          "role":          map[string]any{"type": "string"},
          "dayRate":       map[string]any{"type": "number"},
          "notes":         map[string]any{"type": "string"},
        },
      },
    },
  },
}

var scheduleSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"days"},
  "properties": map[string]any{
    "days": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"day", "episodeNumber", "scenes"},
        "properties": map[string]any{
          "day":           map[string]any{"type": "integer"},
          "date":          map[string]any{"type": "string"},
          "episodeNumber": map[string]any{"type": "integer"},
          "scenes":        map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
          "location":      map[string]any{"type": "string"},
          "notes":         map[string]any{"type": "string"},
        },
      },
    },
  },
}

var locationsSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"locationGroups"},
  "properties": map[string]any{
    "locationGroups": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"id", "parentLocationName", "type"},
        "properties": map[string]any{
          "id":                 map[string]any{"type": "string"},
          "parentLocationName": map[string]any{"type": "string"},
          "type":               map[string]any{"type": "string", "enum": []string{"interior", "exterior", "both"}},
          "subLocations":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
          "episodeUsage": map[string]any{
            "type":                 "object",
            "additionalProperties": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
          },
          "shootingLocationSuggestions": map[string]any{
            "type": "array",
            "items": map[string]any{
              "type":                 "object",
              "additionalProperties": false,
              "required":             []string{"id", "name"},
              "properties": map[string]any{
                "id":      map[string]any{"type": "string"},
                "name":    map[string]any{"type": "string"},
                "address": map[string]any{"type": "string"},
                "costBreakdown": map[string]any{
                  "type":                 "object",
                  "additionalProperties": false,
                  "properties": map[string]any{
                    "dayRate":           map[string]any{"type": "number"},
                    "permitCost":        map[string]any{"type": "number"},
                    "depositAmount":     map[string]any{"type": "number"},
                    "insuranceRequired": map[string]any{"type": "boolean"},
                  },
                },
                "notes": map[string]any{"type": "string"},
              },
            },
          },
        },
      },
    },
  },
}

var propsWardrobeSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "properties": map[string]any{
    "props": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"name"},
        "properties": map[string]any{
          "name":   map[string]any{"type": "string"},
          "scenes": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
          "source": map[string]any{"type": "string"},
          "status": map[string]any{"type": "string"},
        },
      },
    },
    "wardrobe": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"character", "outfit"},
        "properties": map[string]any{
          "character": map[string]any{"type": "string"},
          "outfit":    map[string]any{"type": "string"},
          "scenes":    map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
          "status":    map[string]any{"type": "string"},
        },
      },
    },
  },
}

var questionnaireSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"questions"},
  "properties": map[string]any{
    "questions": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"id", "label", "inputType"},
        "properties": map[string]any{
          "id":        map[string]any{"type": "string"},
          "label":     map[string]any{"type": "string"},
          "inputType": map[string]any{"type": "string"},
          "options":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
        },
      },
    },
  },
}

var budgetSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"lines", "total"},
  "properties": map[string]any{
    "lines": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"category", "amount"},
        "properties": map[string]any{
          "category": map[string]any{"type": "string"},
          "label":    map[string]any{"type": "string"},
          "amount":   map[string]any{"type": "number"},
        },
      },
    },
    "total": map[string]any{"type": "number"},
  },
}

var marketingSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"logline"},
  "properties": map[string]any{
    "logline":        map[string]any{"type": "string"},
    "targetAudience": map[string]any{"type": "string"},
    "beats":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
  },
}
