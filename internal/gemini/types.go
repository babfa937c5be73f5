package gemini

import (
	"fmt"
	"net/http"

	"github.com/accionlabs/intelhub/internal/retry"
)

// Schema is the subset of the OpenAPI schema accepted as a structured-output contract.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// Request is one text-generation call.
type Request struct {
	Prompt            string
	SystemInstruction string
	// ResponseSchema requests JSON output matching the schema.
	ResponseSchema *Schema
	// GoogleSearch enables search grounding. It cannot be combined with ResponseSchema.
	GoogleSearch bool
}

// Response is the useful part of a generateContent reply.
type Response struct {
	Text         string
	Sources      []GroundingSource
	FinishReason string
	BlockReason  string
}

// GroundingSource is a web citation attached to a grounded answer.
type GroundingSource struct {
	URI   string
	Title string
}

// APIError is an error status returned by the model API.
type APIError struct {
	HTTPStatus int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("model API error %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("model API error %d: %s", e.Code, e.Message)
}

// RetryClass classifies the error by its status code for retry.Do.
func (e *APIError) RetryClass() retry.Class {
	switch {
	case e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED":
		return retry.RateLimited
	case e.Code == http.StatusInternalServerError || e.Status == "INTERNAL":
		return retry.Transient
	default:
		return retry.Fatal
	}
}

// Wire format of the generateContent endpoint.

type part struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type groundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

type candidate struct {
	Content           content `json:"content"`
	FinishReason      string  `json:"finishReason"`
	GroundingMetadata *struct {
		GroundingChunks []groundingChunk `json:"groundingChunks"`
	} `json:"groundingMetadata,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
