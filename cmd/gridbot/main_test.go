package main

import (
	"bytes"
	"testing"

	"go.viam.com/test"

	"github.com/gridbot/gridbot/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

const testHandshake = `{"BTN": 4, "BSC": 1, "CSC": 3,
	"LGZx": 2, "LGZy": 2, "UGZx": 4, "UGZy": 3,
	"LRZx": 7, "LRZy": 7, "URZx": 9, "URZy": 9}`

func TestValidate(t *testing.T) {
	handshake := testutils.WriteTempFile(t, "handshake.json", testHandshake)
	cfgPath := testutils.WriteTempFile(t, "gridbot.json", `{"team_number": 4, "handshake": "`+handshake+`"}`)

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"gridbot", "--config", cfgPath, "validate"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "builder")
	test.That(t, out.String(), test.ShouldContainSubstring, "search point")
	test.That(t, out.String(), test.ShouldContainSubstring, "starting corner")
}

func TestValidateBadConfig(t *testing.T) {
	cfgPath := testutils.WriteTempFile(t, "gridbot.json", `{"team_number": 4}`)

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"gridbot", "-c", cfgPath, "validate"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "handshake")
}

func TestRunWithoutHandshake(t *testing.T) {
	cfgPath := testutils.WriteTempFile(t, "gridbot.json",
		`{"team_number": 4, "handshake": "does-not-exist.json"}`)

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"gridbot", "-c", cfgPath, "run"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "refusing to move")
}
