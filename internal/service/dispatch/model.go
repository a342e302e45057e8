package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/rayamira/concierge/backend/internal/config"
	"github.com/rayamira/concierge/backend/internal/model/conversation"
	"github.com/rayamira/concierge/backend/internal/model/persona"
)

// historyLimit caps how many prior turns are forwarded to the model.
const historyLimit = 10

// ModelGateway answers locally through an Ark chat model instead of a remote
// answer service. It satisfies Gateway so the orchestrator cannot tell the
// two apart.
type ModelGateway struct {
	personas persona.Store
	chain    compose.Runnable[map[string]any, *schema.Message]
}

// NewModelGateway compiles the prompt/model chain for local answering.
func NewModelGateway(ctx context.Context, personas persona.Store, cfg config.ModelConfig) (*ModelGateway, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &ModelGateway{personas: personas, chain: runnable}, nil
}

// Dispatch generates a reply for the addressed persona.
func (g *ModelGateway) Dispatch(ctx context.Context, req Request) (Reply, error) {
	p, ok := g.personas.FindByID(req.Character)
	if !ok {
		return Reply{}, fmt.Errorf("unknown persona %q", req.Character)
	}

	input := map[string]any{
		"system":  systemPrompt(p),
		"history": historyMessages(req.History),
		"query":   req.Message,
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("run answer chain: %w", err)
	}

	log.Printf("[dispatch] local model replied for persona=%s length=%d", p.ID, len(response.Content))

	return Reply{
		Text:          response.Content,
		CharacterName: p.Name,
		Emoji:         p.Emoji,
	}, nil
}

// systemPrompt frames the persona as an airport concierge answering in its
// own language.
func systemPrompt(p persona.Persona) string {
	if p.LanguageFamily() == "ar" {
		return fmt.Sprintf(`أنت %s، المساعدة الذكية في مطار أبوظبي الدولي.
أجيبي دائماً باللغة العربية بأسلوب ودود ومهني وموجز.
ساعدي المسافرين في أسئلة البوابات والرحلات والمرافق والخدمات داخل المطار.
إذا لم تعرفي الإجابة فاعترفي بذلك واقترحي مكتب الاستعلامات.`, p.Name)
	}

	return fmt.Sprintf(`You are %s, the intelligent assistant of Abu Dhabi International Airport.
Always answer in English, warmly, professionally and briefly.
Help travellers with gates, flights, facilities and services inside the airport.
If you do not know the answer, say so and point the traveller to the information desk.`, p.Name)
}

func historyMessages(history []conversation.HistoryEntry) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	startIdx := 0
	if len(history) > historyLimit {
		startIdx = len(history) - historyLimit
	}

	messages := make([]*schema.Message, 0, len(history)-startIdx)
	for _, entry := range history[startIdx:] {
		switch entry.Role {
		case string(conversation.RoleUser):
			messages = append(messages, schema.UserMessage(entry.Content))
		case string(conversation.RoleAssistant):
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}

	return messages
}
