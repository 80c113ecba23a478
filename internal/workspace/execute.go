package workspace

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/execclient"
)

// Execute sends the active document to the execute service and renders
// the verdict into the terminal:
//
//	Executing main...
//	Language: cpp
//	Output:
//	42
//	Execution time: 3ms
//
// A document with no content is rejected locally. The filename is sent as
// shown in the tree, without a default extension. An extension the service
// does not run is still sent so the service's own rejection is rendered.
// Transport failures are returned as errors; a failed run is a successful
// call with resp.Success == false.
func (w *Workspace) Execute(ctx context.Context) (*api.ExecuteResponse, error) {
	var (
		req  api.ExecuteRequest
		lang string
	)
	err := w.do("execute_start", func() (string, error) {
		n, ok := w.tracker.Current()
		if !ok || len(n.Data) == 0 {
			return "Error: No active file to execute", ErrNoActiveFile
		}
		if w.exec == nil {
			w.log.Append("Error connecting to execution service:")
			return ErrNoExecutor.Error(), ErrNoExecutor
		}
		req = api.ExecuteRequest{
			Code:     string(n.Data),
			Filename: n.FileName(),
		}
		var langErr error
		if lang, langErr = execclient.Language(req.Filename); langErr != nil {
			w.logger.Warn("execute service will likely reject file", zap.String("file", req.Filename), zap.Error(langErr))
		}
		return "Executing " + n.Name + "...", nil
	})
	if err != nil {
		return nil, err
	}

	resp, callErr := w.exec.Execute(ctx, req)

	err = w.do("execute", func() (string, error) {
		switch {
		case callErr != nil && ctx.Err() != nil && errors.Is(callErr, ctx.Err()):
			return "Execution cancelled", callErr
		case callErr != nil:
			w.log.Append("Error connecting to execution service:")
			return callErr.Error(), callErr
		case resp.Success:
			language := resp.Language
			if language == "" {
				language = lang
			}
			w.log.Append("Language: " + language)
			if resp.Output != "" {
				w.log.Append("Output:")
				w.log.Append(resp.Output)
			} else {
				w.log.Append("No output")
			}
			return "Execution time: " + strconv.FormatFloat(resp.ExecutionTime, 'f', -1, 64) + "ms", nil
		default:
			w.log.Append("Execution failed:")
			switch {
			case resp.Error != "":
				return resp.Error, nil
			case resp.Detail != "":
				return resp.Detail, nil
			default:
				return "Unknown error", nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
