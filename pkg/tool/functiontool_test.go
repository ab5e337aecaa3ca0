package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetArgs struct {
	Name string `json:"name" jsonschema:"required,description=Who to greet"`
	Loud bool   `json:"loud,omitempty" jsonschema:"description=Shout the greeting,default=false"`
}

func TestNewFunc(t *testing.T) {
	t.Run("generates a schema from struct tags", func(t *testing.T) {
		tl, err := NewFunc(
			FuncConfig{Name: "greet", Description: "Greets someone"},
			func(ctx context.Context, a greetArgs) (Result, error) {
				return Ok("hi "+a.Name, nil), nil
			},
			nil,
		)
		require.NoError(t, err)

		def := tl.Definition()
		assert.Equal(t, "greet", def.Name)
		require.Contains(t, def.Parameters, "name")
		assert.True(t, def.Parameters["name"].Required)
		require.Contains(t, def.Parameters, "loud")
		assert.False(t, def.Parameters["loud"].Required)
	})

	t.Run("execute converts the argument map to the typed struct", func(t *testing.T) {
		tl, err := NewFunc(
			FuncConfig{Name: "greet", Description: "Greets someone"},
			func(ctx context.Context, a greetArgs) (Result, error) {
				return Ok("hi "+a.Name, nil), nil
			},
			nil,
		)
		require.NoError(t, err)

		res, err := tl.Execute(context.Background(), map[string]any{"name": "ada"})
		require.NoError(t, err)
		assert.Equal(t, "hi ada", res.Data)
	})

	t.Run("custom validate runs against the typed struct", func(t *testing.T) {
		tl, err := NewFunc(
			FuncConfig{Name: "greet", Description: "Greets someone"},
			func(ctx context.Context, a greetArgs) (Result, error) {
				return Ok("hi "+a.Name, nil), nil
			},
			func(a greetArgs) error {
				if a.Name == "" {
					return assert.AnError
				}
				return nil
			},
		)
		require.NoError(t, err)

		assert.Error(t, tl.Validate(map[string]any{}))
		assert.NoError(t, tl.Validate(map[string]any{"name": "ada"}))
	})

	t.Run("rejects missing name or description", func(t *testing.T) {
		_, err := NewFunc(FuncConfig{Description: "x"}, func(context.Context, greetArgs) (Result, error) { return Result{}, nil }, nil)
		assert.Error(t, err)

		_, err = NewFunc(FuncConfig{Name: "x"}, func(context.Context, greetArgs) (Result, error) { return Result{}, nil }, nil)
		assert.Error(t, err)
	})
}
