package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"deepresearch/internal/config"
)

// stage runs one step of the research pipeline over a message list.
type stage interface {
	Run(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// Crew sequences the three research agents: the web searcher gathers raw
// findings with the search tool, the analyst synthesizes them, and the
// writer produces the final markdown report.
type Crew struct {
	searcher stage
	analyst  stage
	writer   stage
}

// New builds the crew for the given provider/model using the configured
// search providers.
func New(ctx context.Context, cfg *config.Config, provider, modelName string) (*Crew, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	chatModel, err := newChatModel(ctx, cfg, provider, modelName)
	if err != nil {
		return nil, err
	}

	searchTool := initWebSearch(cfg.Search)
	if searchTool == nil {
		return nil, errors.New("no search provider available")
	}
	searchAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{searchTool},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init search agent: %w", err)
	}

	return &Crew{
		searcher: agentStage{agent: searchAgent},
		analyst:  modelStage{model: chatModel},
		writer:   modelStage{model: chatModel},
	}, nil
}

// Kickoff runs the pipeline sequentially, feeding each task's output into
// the next, and returns the writer's markdown report.
func (c *Crew) Kickoff(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}

	searchOut, err := c.searcher.Run(ctx, []*schema.Message{
		{Role: schema.System, Content: webSearcherPrompt},
		{Role: schema.User, Content: fmt.Sprintf(searchTaskTemplate, query)},
	})
	if err != nil {
		return "", fmt.Errorf("search task: %w", err)
	}

	analysisOut, err := c.analyst.Run(ctx, []*schema.Message{
		{Role: schema.System, Content: researchAnalystPrompt},
		{Role: schema.User, Content: fmt.Sprintf(analysisTaskTemplate, query, searchOut.Content)},
	})
	if err != nil {
		return "", fmt.Errorf("analysis task: %w", err)
	}

	reportOut, err := c.writer.Run(ctx, []*schema.Message{
		{Role: schema.System, Content: technicalWriterPrompt},
		{Role: schema.User, Content: fmt.Sprintf(writingTaskTemplate, query, analysisOut.Content)},
	})
	if err != nil {
		return "", fmt.Errorf("writing task: %w", err)
	}

	report := strings.TrimSpace(reportOut.Content)
	if report == "" {
		return "", errors.New("writer produced empty report")
	}
	return report, nil
}

type agentStage struct {
	agent *react.Agent
}

func (s agentStage) Run(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	return s.agent.Generate(ctx, messages)
}

type modelStage struct {
	model model.BaseChatModel
}

func (s modelStage) Run(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	return s.model.Generate(ctx, messages)
}
