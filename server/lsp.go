package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "brainfuck-lsp"

// instructionDocs holds hover documentation for the eight commands.
var instructionDocs = map[byte]string{
	'>': "`>` — move the data pointer one cell to the right (wraps at the end of the tape)",
	'<': "`<` — move the data pointer one cell to the left (wraps at the start of the tape)",
	'+': "`+` — increment the current cell, wrapping 255 to 0",
	'-': "`-` — decrement the current cell, wrapping 0 to 255",
	'.': "`.` — output the character whose code point equals the current cell value",
	',': "`,` — read one input character into the current cell (0 when no input is available)",
	'[': "`[` — if the current cell is 0, jump past the matching `]`",
	']': "`]` — if the current cell is nonzero, jump back to just after the matching `[`",
}

// LspServer provides editor diagnostics and hovers for Brainfuck sources.
// Unmatched brackets are reported here as marking only; the interpreter
// itself never validates them.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Brainfuck LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	ch, found := charAt(text, pos)
	if !found {
		return nil, nil
	}
	doc, ok := instructionDocs[ch]
	if !ok {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc,
		},
		Range: &protocol.Range{
			Start: pos,
			End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
		},
	}, nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := bracketDiagnostics(text)
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// bracketDiagnostics reports every unmatched '[' and ']' with its
// line/character position.
func bracketDiagnostics(text string) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	var open []protocol.Position

	line := protocol.UInteger(0)
	char := protocol.UInteger(0)

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			line++
			char = 0
			continue
		case '[':
			open = append(open, protocol.Position{Line: line, Character: char})
		case ']':
			if len(open) > 0 {
				open = open[:len(open)-1]
			} else {
				diagnostics = append(diagnostics, unmatchedBracket("]", protocol.Position{Line: line, Character: char}))
			}
		}
		char++
	}

	for _, pos := range open {
		diagnostics = append(diagnostics, unmatchedBracket("[", pos))
	}
	return diagnostics
}

func unmatchedBracket(bracket string, pos protocol.Position) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityWarning
	source := lspName
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: pos,
			End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
		},
		Severity: &severity,
		Source:   &source,
		Message:  fmt.Sprintf("unmatched %q: the interpreter will execute this mechanically", bracket),
	}
}

// charAt returns the byte at an LSP position. Brainfuck sources are
// ASCII, so UTF-16 code units and bytes coincide.
func charAt(text string, pos protocol.Position) (byte, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return 0, false
	}
	line := lines[pos.Line]
	if int(pos.Character) >= len(line) {
		return 0, false
	}
	return line[pos.Character], true
}

func boolPtr(b bool) *bool {
	return &b
}
