// Package mcpserver exposes the summarizer as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joelkehle/medlite/internal/medsummary"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

const serverName = "medlite"

// Engine is the part of medsummary.Engine the tools call.
type Engine interface {
	SummarizeReport(ctx context.Context, text string) medsummary.SummaryResult
	Translator() *medsummary.Translator
}

type TextParams struct {
	Text string `json:"text" jsonschema:"the medical report or clinical text"`
}

type TranslateResult struct {
	Text string `json:"text"`
}

type FindingsResult struct {
	Findings []string `json:"findings"`
}

type Server struct {
	engine Engine
	logger logrus.FieldLogger
	server *mcp.Server
}

func New(engine Engine, version string, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		engine: engine,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_report",
		Description: "Summarize a medical report into a technical summary, a patient-friendly summary and up to five key findings.",
	}, s.handleSummarize)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "translate_terms",
		Description: "Replace clinical terminology in the text with plain-language equivalents.",
	}, s.handleTranslate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract_findings",
		Description: "Extract up to five key finding phrases from a medical report.",
	}, s.handleExtractFindings)
	return s
}

// Run serves tools over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) handleSummarize(ctx context.Context, _ *mcp.CallToolRequest, params TextParams) (*mcp.CallToolResult, medsummary.SummaryResult, error) {
	log := s.toolLogger("summarize_report")
	start := time.Now()
	res := s.engine.SummarizeReport(ctx, params.Text)
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("tool completed")
	return jsonResult(res), res, nil
}

func (s *Server) handleTranslate(_ context.Context, _ *mcp.CallToolRequest, params TextParams) (*mcp.CallToolResult, TranslateResult, error) {
	s.toolLogger("translate_terms").Debug("tool invoked")
	out := TranslateResult{Text: s.engine.Translator().Translate(params.Text)}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: out.Text}}}, out, nil
}

func (s *Server) handleExtractFindings(_ context.Context, _ *mcp.CallToolRequest, params TextParams) (*mcp.CallToolResult, FindingsResult, error) {
	s.toolLogger("extract_findings").Debug("tool invoked")
	out := FindingsResult{Findings: medsummary.ExtractFindings(medsummary.Normalize(params.Text))}
	return jsonResult(out), out, nil
}

func (s *Server) toolLogger(tool string) logrus.FieldLogger {
	return s.logger.WithFields(logrus.Fields{"tool": tool, "call_id": uuid.NewString()})
}

func jsonResult(v any) *mcp.CallToolResult {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(blob)}}}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}
}
