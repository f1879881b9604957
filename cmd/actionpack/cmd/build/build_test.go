package build

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dennishilgert/actionpack/internal/app/actionpack"
	"github.com/stretchr/testify/require"
)

func TestLoadRequest_Yaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.yaml")
	require.NoError(t, os.WriteFile(path, []byte("action_name: demo\naction_data: UEs=\naction_kind: python:3\n"), 0644))

	req, err := loadRequest(&commandFlags{RequestFile: path, ActionMain: "handler"}, nil)
	require.NoError(t, err)
	require.Equal(t, "demo", req.ActionName)
	require.Equal(t, "UEs=", req.ActionData)
	require.Equal(t, "python:3", req.ActionKind)
	require.Equal(t, "handler", req.ActionMain)
}

func TestLoadRequest_JsonFromStdin(t *testing.T) {
	stdin := strings.NewReader(`{"action_name": "demo", "action_data": "UEs=", "action_namespace": "team"}`)

	req, err := loadRequest(&commandFlags{RequestFile: "-", ActionName: "renamed"}, stdin)
	require.NoError(t, err)
	require.Equal(t, "renamed", req.ActionName)
	require.Equal(t, "team", req.ActionNamespace)
}

func TestLoadRequest_ActionDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "action.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip"), 0644))

	req, err := loadRequest(&commandFlags{ActionName: "demo", ActionDataFile: path}, nil)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("zip")), req.ActionData)
}

func TestLoadRequest_MissingFile(t *testing.T) {
	_, err := loadRequest(&commandFlags{RequestFile: filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	require.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, 0, writeResult(&out, actionpack.Result{Result: "successfully created a new action demo"}))
	require.JSONEq(t, `{"result":"successfully created a new action demo"}`, out.String())

	out.Reset()
	require.Equal(t, 1, writeResult(&out, actionpack.Result{Error: "failed"}))
	require.JSONEq(t, `{"error":"failed"}`, out.String())
}
