// Package llm genera borradores de informes delegando en un proveedor LLM
// externo. La calidad del contenido generado queda fuera del alcance del
// backend: esto es un proxy fino.
package llm

import (
	"context"
	"fmt"

	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client envuelve el cliente del proveedor LLM.
type Client struct {
	api   *openai.Client
	model string
}

// DefaultClient es el cliente inicializado por InitLLM, nil si no hay API key.
var DefaultClient *Client

// InitLLM inicializa el cliente LLM desde la configuración.
func InitLLM() {
	apiKey := config.Cfg.OpenAIAPIKey
	if apiKey == "" {
		orilog.L.Warn("OPENAI_API_KEY not set. Informe generation disabled.")
		return
	}
	DefaultClient = &Client{
		api:   openai.NewClient(apiKey),
		model: config.Cfg.OpenAIModel,
	}
	orilog.L.Info("LLM client initialized", zap.String("model", config.Cfg.OpenAIModel))
}

// DraftRequest son los datos del alumno y observaciones del orientador.
type DraftRequest struct {
	StudentName  string
	Age          int
	Observations string
	FocusAreas   []string
}

const systemPrompt = "Eres un asistente de orientadores educativos. Redactas " +
	"borradores de informes psicopedagógicos en español, con tono profesional, " +
	"estructura clara y sin emitir diagnósticos clínicos."

// GenerateInformeDraft pide al proveedor un borrador de informe.
func (c *Client) GenerateInformeDraft(ctx context.Context, req DraftRequest) (string, error) {
	if c == nil || c.api == nil {
		return "", fmt.Errorf("LLM client not initialized")
	}

	userPrompt := fmt.Sprintf(
		"Alumno: %s (edad %d).\nObservaciones del orientador:\n%s\n",
		req.StudentName, req.Age, req.Observations)
	for _, area := range req.FocusAreas {
		userPrompt += fmt.Sprintf("- Área de interés: %s\n", area)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("LLM completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
