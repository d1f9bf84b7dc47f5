package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/descent/internal/errors"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type runIDParams struct {
	RunID string `json:"run_id"`
}

// decodeParams accepts params either as an object or as a one-element array
// holding that object.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return apperrors.New(apperrors.InvalidArgument, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return apperrors.Wrap(err, apperrors.InvalidArgument, "invalid parameter format")
		}
		if len(list) != 1 {
			return apperrors.New(apperrors.InvalidArgument, "expected exactly one parameter object")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidArgument, "invalid parameter format")
	}
	return nil
}

func decodeRunID(raw json.RawMessage) (string, error) {
	var p runIDParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.RunID == "" {
		return "", apperrors.New(apperrors.InvalidArgument, "run_id is required")
	}
	return p.RunID, nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests. Protocol and method errors
// are reported in the response body with HTTP 200.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondRPCError(w, apperrors.CodeParseError, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondRPCError(w, apperrors.CodeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)

	switch request.Method {
	case "minimize.start":
		var req MinimizeRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startRun(req)
		}
	case "minimize.status":
		var id string
		if id, err = decodeRunID(request.Params); err == nil {
			result, err = s.runView(id)
		}
	case "minimize.cancel":
		var id string
		if id, err = decodeRunID(request.Params); err == nil {
			result, err = s.cancelRun(id)
		}
	case "minimize.trajectory":
		var id string
		if id, err = decodeRunID(request.Params); err == nil {
			result, err = s.trajectory(id)
		}
	case "minimize.objectives":
		result = s.objectives()
	default:
		s.respondRPCError(w, apperrors.CodeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondRPCError(w, apperrors.RPCCode(err), err.Error(), request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
}

// respondRPCError sends a JSON-RPC 2.0 error response
func (s *Server) respondRPCError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Debug("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
