package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cedulabot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestCommandName(t *testing.T) {
	cases := map[string]string{
		"/cancel":             "/cancel",
		"  /Cancel  ":         "/cancel",
		"/correr_bot@cedbot":  "/correr_bot",
		"/start now":          "/start",
		"12345":               "",
		"":                    "",
		"hola /start":         "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CommandName(in), "input %q", in)
	}
}

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/correr_bot", commands.Command{Handler: noop, Description: "Consultar"}))
	require.NoError(t, reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Cancelar", Aliases: []string{"cancelar"}}))
	require.NoError(t, reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "x", Hidden: true}))

	assert.Error(t, reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "dup"}))
	assert.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "no slash"}))
	assert.Error(t, reg.RegisterCommand("/empty", commands.Command{Handler: noop}))

	key, _, ok := reg.LookupCommand("/cancelar")
	require.True(t, ok)
	assert.Equal(t, "/cancel", key)

	_, _, ok = reg.LookupCommand("/unknown")
	assert.False(t, ok)

	menu := reg.ListCommands(true)
	require.Len(t, menu, 2)
	assert.Equal(t, "cancel", menu[0].Text)
	assert.Equal(t, "correr_bot", menu[1].Text)
	assert.Len(t, reg.ListCommands(false), 3)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("conv_cancel", noop))
	assert.Error(t, reg.RegisterCallback("conv_cancel", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("conv_cancel")
	assert.True(t, ok)
	assert.Equal(t, []string{"conv_cancel"}, reg.ListCallbacks())
	assert.NotNil(t, reg.CallbackNotFound())
}
