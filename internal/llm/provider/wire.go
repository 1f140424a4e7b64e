package provider

import "fmt"

// Wire types for the generative-language REST API. Field names follow the
// provider's JSON contract exactly; everything optional is omitempty so a
// sparse request stays sparse.

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

// ThinkingConfig present-but-empty opts into a model-decided reasoning
// budget on models that support it.
type ThinkingConfig struct{}

type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	TopK            *int64          `json:"topK,omitempty"`
	MaxOutputTokens *int64          `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

type GoogleSearch struct{}

type Tool struct {
	GoogleSearch *GoogleSearch `json:"googleSearch,omitempty"`
}

// ImageConfig is only meaningful for the image-output model; it is dropped
// for every other model.
type ImageConfig struct {
	ImageSize string `json:"imageSize"`
}

type generateContentRequest struct {
	Contents          []Content          `json:"contents"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []Tool             `json:"tools,omitempty"`
	ImageConfig       *ImageConfig       `json:"imageConfig,omitempty"`
}

type candidateContent struct {
	Parts []Part `json:"parts"`
}

type candidate struct {
	Content candidateContent `json:"content"`
}

type usageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	Error         *apiError      `json:"error"`
}

type countTokensRequest struct {
	Contents          []Content          `json:"contents"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
}

type countTokensResponse struct {
	TotalTokens int64     `json:"totalTokens"`
	Error       *apiError `json:"error"`
}

// StatusError carries the HTTP status (or embedded error code) so retry
// classification can distinguish 429/503 from everything else.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}
