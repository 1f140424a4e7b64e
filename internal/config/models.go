package config

import "fmt"

// DefaultModelID is the hard-coded fallback used whenever the persisted
// selection is absent or not in the allow-list.
const DefaultModelID = "gemini-2.5-flash"

// ImageModelID is the only model for which the output-image-size hint is
// meaningful.
const ImageModelID = "gemini-2.5-flash-image"

type Model struct {
	ID            string
	Name          string
	ContextWindow int64
	CanReason     bool
	CanImageSize  bool
}

// KnownModels is the allow-list. Order matters only for display.
var KnownModels = []Model{
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", ContextWindow: 1_048_576, CanReason: true},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", ContextWindow: 1_048_576, CanReason: true},
	{ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash Lite", ContextWindow: 1_048_576},
	{ID: ImageModelID, Name: "Gemini 2.5 Flash Image", ContextWindow: 32_768, CanImageSize: true},
}

func ModelByID(id string) (Model, bool) {
	for _, m := range KnownModels {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

func MustModel(id string) Model {
	m, ok := ModelByID(id)
	if !ok {
		panic(fmt.Sprintf("unknown model: %s", id))
	}
	return m
}
