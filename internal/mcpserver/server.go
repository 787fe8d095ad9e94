// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes HedgeyOS desktop tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/desktop"
	"github.com/starford/hedgey/internal/models"
	"github.com/starford/hedgey/internal/vfs"
	"github.com/starford/hedgey/internal/wm"
)

const guideURI = "hedgey://guide"

// Server wraps the MCP server with desktop tools.
type Server struct {
	mcp   *server.MCPServer
	sess  *desktop.Session
	fetch httpGetter
}

// New creates a new MCP server with all desktop tools registered.
func New(sess *desktop.Session) *Server {
	s := &Server{sess: sess, fetch: newFetchClient()}

	s.mcp = server.NewMCPServer(
		"HedgeyOS",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_windows",
		mcp.WithDescription("List open windows, topmost first."),
	), s.listWindows)

	s.mcp.AddTool(mcp.NewTool("open_window",
		mcp.WithDescription("Open a window and focus it. Read the hedgey://guide resource for the window kinds."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Window kind"),
			mcp.Enum("files", "browser", "app", "notes", "terminal", "themes")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("url", mcp.Description("Page for browser and app windows")),
	), s.openWindow)

	s.mcp.AddTool(mcp.NewTool("close_window",
		mcp.WithDescription("Close a window by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Window id (e.g. w3)")),
	), s.closeWindow)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List stored notes and uploads, newest first."),
		mcp.WithString("kind", mcp.Description("Optional record kind filter"), mcp.Enum("note", "file")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the decrypted text of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Create a note, or update the note with the given id. "+
			"Names are made unique across the store."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Note name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Plain text body")),
		mcp.WithString("id", mcp.Description("Id of the note to update")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("import_file",
		mcp.WithDescription("Store a file from an http(s) URL or a base64 data URI, "+
			"as if it were dropped on the desktop."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
	), s.importFile)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Desktop Guide",
			mcp.WithResourceDescription("Window kinds and file semantics of the desktop."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listWindows(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sess.Manager().Windows()), nil
}

func (s *Server) openWindow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m := s.sess.Manager()
	id := m.Spawn(ctx, wm.ParseKind(kind), req.GetString("title", ""), wm.Options{URL: req.GetString("url", "")})
	win, _ := m.Window(id)
	return jsonResult(win), nil
}

func (s *Server) closeWindow(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m := s.sess.Manager()
	if _, ok := m.Window(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("window not found: %s", id)), nil
	}
	m.Close(id)
	return mcp.NewToolResultText(fmt.Sprintf("closed: %s", id)), nil
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fs := s.sess.Files()
	var (
		rows []models.Record
		err  error
	)
	switch req.GetString("kind", "") {
	case models.KindNote:
		rows, err = fs.ListNotes(ctx)
	case models.KindFile:
		rows, err = fs.ListUploads(ctx)
	default:
		rows, err = fs.ListFiles(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rows), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, ok, err := s.sess.Files().ReadNoteText(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.sess.Files().SaveNote(ctx, vfs.NoteInput{ID: req.GetString("id", ""), Name: name, Content: content})
	if errors.Is(err, apperr.ErrEmptyName) {
		return mcp.NewToolResultError("name is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.sess.Bus().DocumentsChanged()
	return jsonResult(rec), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     DesktopGuide,
		},
	}, nil
}

// HTTPHandler serves the same tools over MCP streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}
