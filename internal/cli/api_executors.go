package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/temirov/repo2txt/internal/services/api"
	"github.com/temirov/repo2txt/internal/services/workspace"
	"github.com/temirov/repo2txt/internal/types"
)

const (
	commandOpen            = "open"
	commandScanDirectory   = "scan_directory"
	commandUpdateSelection = "update_selection"
	commandToggleExpanded  = "toggle_expanded"
	commandSelectAll       = "select_all"
	commandDeselectAll     = "deselect_all"
	commandTree            = "tree"
	commandState           = "state"
	commandSearch          = "search"
	commandGenerate        = "generate"
	commandStats           = "stats"
	commandCopyFromCache   = "copy_from_cache"
	commandReadFile        = "read_file"
	commandSaveSelection   = "save_selection"
	commandLoadSelection   = "load_selection"
	commandParentDirectory = "parent_directory"

	errorIdentifierRequired = "id is required"
	errorQueryRequired      = "query is required"
	errorPathRequired       = "path is required"
)

type openRequest struct {
	Path string `json:"path"`
}

type nodeRequest struct {
	ID string `json:"id"`
}

type selectionRequest struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

type expansionRequest struct {
	ID       string `json:"id"`
	Expanded bool   `json:"expanded"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type generateRequest struct {
	OutputPath string `json:"output_path"`
}

type parentDirectoryResponse struct {
	Parent    string `json:"parent,omitempty"`
	HasParent bool   `json:"has_parent"`
}

type openResponse struct {
	Root  string       `json:"root"`
	Epoch uint64       `json:"epoch"`
	Nodes []types.Node `json:"nodes"`
}

type changedResponse struct {
	Changed bool `json:"changed"`
}

type generateResponse struct {
	types.GenerateResult
	OutputPath string `json:"output_path,omitempty"`
}

type readFileResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// commandHandlers binds api commands to one workspace. Open reloads
// configuration for the directory it indexes.
type commandHandlers struct {
	app     *application
	service *workspace.Service
}

func (handlers commandHandlers) executors() map[string]api.CommandExecutor {
	return map[string]api.CommandExecutor{
		commandOpen:            api.CommandExecutorFunc(handlers.open),
		commandScanDirectory:   api.CommandExecutorFunc(handlers.scanDirectory),
		commandUpdateSelection: api.CommandExecutorFunc(handlers.updateSelection),
		commandToggleExpanded:  api.CommandExecutorFunc(handlers.toggleExpanded),
		commandSelectAll:       api.CommandExecutorFunc(handlers.selectAll),
		commandDeselectAll:     api.CommandExecutorFunc(handlers.deselectAll),
		commandTree:            api.CommandExecutorFunc(handlers.tree),
		commandState:           api.CommandExecutorFunc(handlers.state),
		commandSearch:          api.CommandExecutorFunc(handlers.search),
		commandGenerate:        api.CommandExecutorFunc(handlers.generate),
		commandStats:           api.CommandExecutorFunc(handlers.stats),
		commandCopyFromCache:   api.CommandExecutorFunc(handlers.copyFromCache),
		commandReadFile:        api.CommandExecutorFunc(handlers.readFile),
		commandSaveSelection:   api.CommandExecutorFunc(handlers.saveSelection),
		commandLoadSelection:   api.CommandExecutorFunc(handlers.loadSelection),
		commandParentDirectory: api.CommandExecutorFunc(handlers.parentDirectory),
	}
}

func apiCapabilities() []api.Capability {
	return []api.Capability{
		{Name: commandOpen, Description: "Index a directory and start background token counting"},
		{Name: commandScanDirectory, Description: "List the children of a directory node that are not yet indexed"},
		{Name: commandUpdateSelection, Description: "Select or deselect one node"},
		{Name: commandToggleExpanded, Description: "Expand or collapse one directory node"},
		{Name: commandSelectAll, Description: "Select every node"},
		{Name: commandDeselectAll, Description: "Deselect every node"},
		{Name: commandTree, Description: "Return every node in display order"},
		{Name: commandState, Description: "Return every node keyed by id"},
		{Name: commandSearch, Description: "Fuzzy match node paths"},
		{Name: commandGenerate, Description: "Export the selected files into one document"},
		{Name: commandStats, Description: "Total the files an export would include"},
		{Name: commandCopyFromCache, Description: "Copy the last export to the clipboard"},
		{Name: commandReadFile, Description: "Preview the content of one file"},
		{Name: commandSaveSelection, Description: "Persist selection and expansion state"},
		{Name: commandLoadSelection, Description: "Apply the persisted selection and expansion state"},
		{Name: commandParentDirectory, Description: "Return the parent of a directory path for upward navigation"},
	}
}

func commandFailure(commandName string, err error) error {
	return api.NewCommandExecutionError(api.StatusCodeFromError(err), fmt.Errorf("%s: %w", commandName, err))
}

func badRequest(message string) error {
	return api.NewCommandExecutionError(http.StatusBadRequest, errors.New(message))
}

func (handlers commandHandlers) open(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload openRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	root, rootErr := resolveRoot(payload.Path)
	if rootErr != nil {
		return api.CommandResponse{}, commandFailure(commandOpen, rootErr)
	}
	appConfig, _, configErr := handlers.app.loadConfiguration(root)
	if configErr != nil {
		return api.CommandResponse{}, commandFailure(commandOpen, configErr)
	}
	nodes, openErr := handlers.service.Open(ctx, root, &appConfig)
	if openErr != nil {
		return api.CommandResponse{}, commandFailure(commandOpen, openErr)
	}
	return api.CommandResponse{Result: openResponse{Root: root, Epoch: handlers.service.Epoch(), Nodes: nodes}}, nil
}

func (handlers commandHandlers) scanDirectory(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload nodeRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	if strings.TrimSpace(payload.ID) == "" {
		return api.CommandResponse{}, badRequest(errorIdentifierRequired)
	}
	added, scanErr := handlers.service.ScanDirectory(ctx, payload.ID)
	if scanErr != nil {
		return api.CommandResponse{}, commandFailure(commandScanDirectory, scanErr)
	}
	return api.CommandResponse{Result: added}, nil
}

func (handlers commandHandlers) updateSelection(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload selectionRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	changed := handlers.service.UpdateSelection(payload.ID, payload.Selected)
	return api.CommandResponse{Result: changedResponse{Changed: changed}}, nil
}

func (handlers commandHandlers) toggleExpanded(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload expansionRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	changed := handlers.service.ToggleExpanded(payload.ID, payload.Expanded)
	return api.CommandResponse{Result: changedResponse{Changed: changed}}, nil
}

func (handlers commandHandlers) selectAll(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	handlers.service.SelectAll()
	return api.CommandResponse{}, nil
}

func (handlers commandHandlers) deselectAll(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	handlers.service.DeselectAll()
	return api.CommandResponse{}, nil
}

func (handlers commandHandlers) tree(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	return api.CommandResponse{Result: handlers.service.Tree()}, nil
}

func (handlers commandHandlers) state(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	return api.CommandResponse{Result: handlers.service.State()}, nil
}

func (handlers commandHandlers) search(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload searchRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	if strings.TrimSpace(payload.Query) == "" {
		return api.CommandResponse{}, badRequest(errorQueryRequired)
	}
	return api.CommandResponse{Result: handlers.service.Search(payload.Query)}, nil
}

func (handlers commandHandlers) generate(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload generateRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	result, generateErr := handlers.service.Generate(ctx, payload.OutputPath)
	if generateErr != nil {
		return api.CommandResponse{}, commandFailure(commandGenerate, generateErr)
	}
	response := api.CommandResponse{Result: generateResponse{GenerateResult: result.GenerateResult, OutputPath: result.OutputPath}}
	if limit := handlers.service.Config().TokenLimit; limit > 0 && result.Stats.Tokens > limit {
		response.Warnings = append(response.Warnings, fmt.Sprintf("export holds %d tokens, above the configured limit of %d", result.Stats.Tokens, limit))
	}
	return response, nil
}

func (handlers commandHandlers) stats(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	stats, statsErr := handlers.service.Stats(ctx)
	if statsErr != nil {
		return api.CommandResponse{}, commandFailure(commandStats, statsErr)
	}
	return api.CommandResponse{Result: stats}, nil
}

func (handlers commandHandlers) copyFromCache(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	if copyErr := handlers.service.CopyFromCache(); copyErr != nil {
		return api.CommandResponse{}, commandFailure(commandCopyFromCache, copyErr)
	}
	return api.CommandResponse{}, nil
}

func (handlers commandHandlers) readFile(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload nodeRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	if strings.TrimSpace(payload.ID) == "" {
		return api.CommandResponse{}, badRequest(errorIdentifierRequired)
	}
	content, readErr := handlers.service.ReadFile(payload.ID)
	if readErr != nil {
		return api.CommandResponse{}, commandFailure(commandReadFile, readErr)
	}
	return api.CommandResponse{Result: readFileResponse{ID: payload.ID, Content: content}}, nil
}

func (handlers commandHandlers) saveSelection(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	if saveErr := handlers.service.SaveSelection(); saveErr != nil {
		return api.CommandResponse{}, commandFailure(commandSaveSelection, saveErr)
	}
	return api.CommandResponse{}, nil
}

func (handlers commandHandlers) loadSelection(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	nodes, loadErr := handlers.service.LoadSelection()
	if loadErr != nil {
		return api.CommandResponse{}, commandFailure(commandLoadSelection, loadErr)
	}
	return api.CommandResponse{Result: nodes}, nil
}

func (handlers commandHandlers) parentDirectory(ctx context.Context, request api.CommandRequest) (api.CommandResponse, error) {
	var payload openRequest
	if decodeErr := request.Decode(&payload); decodeErr != nil {
		return api.CommandResponse{}, decodeErr
	}
	if strings.TrimSpace(payload.Path) == "" {
		return api.CommandResponse{}, badRequest(errorPathRequired)
	}
	parent, hasParent := workspace.ParentDirectory(payload.Path)
	return api.CommandResponse{Result: parentDirectoryResponse{Parent: parent, HasParent: hasParent}}, nil
}
