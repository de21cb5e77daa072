package stem

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/cellmesh/cell/transport/local"
)

// ControlRequest is the JSON command frame spec.md §4.5's local control
// socket accepts: Germinate{name} or Replace{name, new-binary-path}.
type ControlRequest struct {
	Cmd        string `json:"cmd"` // "germinate" | "replace"
	Name       string `json:"name"`
	BinaryPath string `json:"binary_path,omitempty"`
}

// ControlResponse is the reply to a ControlRequest.
type ControlResponse struct {
	Status string `json:"status"` // "Ok" | "NotFound" | "SpawnFailed"
	Reason string `json:"reason,omitempty"`
}

const controlSockName = "stem.sock"

func (s *Stem) controlSockPath() string { return s.runtimeDir + "/" + controlSockName }

// ServeControl binds and serves the Stem's local control socket
// (<runtime-dir>/stem.sock), blocking until the listener is closed.
func (s *Stem) ServeControl(ctx context.Context) error {
	ln, err := local.Bind(s.controlSockPath(), func(_ *local.Conn, payload []byte) ([]byte, bool, error) {
		return s.handleControl(ctx, payload)
	})
	if err != nil {
		return err
	}
	return ln.Serve()
}

func (s *Stem) handleControl(ctx context.Context, payload []byte) ([]byte, bool, error) {
	var req ControlRequest
	if err := jsoniter.Unmarshal(payload, &req); err != nil {
		resp, _ := jsoniter.Marshal(ControlResponse{Status: "SpawnFailed", Reason: "malformed request"})
		return resp, true, nil
	}
	var resp ControlResponse
	switch req.Cmd {
	case "germinate":
		res, err := s.Germinate(req.Name)
		resp = germinateResponse(res, err)
	case "replace":
		if err := s.Replace(ctx, req.Name, req.BinaryPath); err != nil {
			resp = ControlResponse{Status: "SpawnFailed", Reason: err.Error()}
		} else {
			resp = ControlResponse{Status: "Ok"}
		}
	default:
		resp = ControlResponse{Status: "SpawnFailed", Reason: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
	body, err := jsoniter.Marshal(resp)
	if err != nil {
		return nil, true, err
	}
	return body, true, nil
}

func germinateResponse(res GerminateResult, err error) ControlResponse {
	if err != nil {
		return ControlResponse{Status: "SpawnFailed", Reason: err.Error()}
	}
	switch res {
	case GerminateOk:
		return ControlResponse{Status: "Ok"}
	case GerminateNotFound:
		return ControlResponse{Status: "NotFound"}
	default:
		return ControlResponse{Status: "SpawnFailed"}
	}
}

// RequestGerminate is the client-side call a Synapse makes to a Stem's
// control socket when a cell's local socket does not yet exist.
func RequestGerminate(ctx context.Context, runtimeDir, name string) (ControlResponse, error) {
	return sendControl(ctx, runtimeDir, ControlRequest{Cmd: "germinate", Name: name})
}

// RequestReplace is the client-side call driving spec.md §4.5's Replace
// command.
func RequestReplace(ctx context.Context, runtimeDir, name, binaryPath string) (ControlResponse, error) {
	return sendControl(ctx, runtimeDir, ControlRequest{Cmd: "replace", Name: name, BinaryPath: binaryPath})
}

func sendControl(ctx context.Context, runtimeDir string, req ControlRequest) (ControlResponse, error) {
	cc, err := local.Dial(ctx, runtimeDir+"/"+controlSockName)
	if err != nil {
		return ControlResponse{}, err
	}
	defer cc.Close()
	body, err := jsoniter.Marshal(req)
	if err != nil {
		return ControlResponse{}, err
	}
	deadline, _ := ctx.Deadline()
	respBody, err := cc.Roundtrip(deadline, body)
	if err != nil {
		return ControlResponse{}, err
	}
	var resp ControlResponse
	if err := jsoniter.Unmarshal(respBody, &resp); err != nil {
		return ControlResponse{}, err
	}
	return resp, nil
}
