package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	output, err := runRootCommandForTest("--help")
	require.NoError(t, err)
	for _, cmd := range []string{"onboard", "run", "ask", "status", "version"} {
		assert.Contains(t, output, cmd)
	}
}

func TestAskHelpListsFlags(t *testing.T) {
	output, err := runRootCommandForTest("ask", "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "--agent")
	assert.Contains(t, output, "--message")
}

func TestBareInvocationRequiresSubcommand(t *testing.T) {
	_, err := runRootCommandForTest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcommand is required")
}
