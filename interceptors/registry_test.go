package interceptors

import (
	"context"
	"testing"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("Register keeps registration order", func(t *testing.T) {
		logging, timer, trace, _ := registered()
		r := NewRegistry()

		require.NoError(t, r.Register(logging))
		require.NoError(t, r.Register(timer, trace))

		assert.Equal(t, []Interceptor{logging, timer, trace}, r.All())
	})

	t.Run("Register rejects nil", func(t *testing.T) {
		logging, _, _, _ := registered()
		r := NewRegistry()

		err := r.Register(logging, nil)

		var argErr *contracts.ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "interceptors[1]", argErr.Arg)
		assert.Empty(t, r.All())
	})

	t.Run("Register rejects nil pointers", func(t *testing.T) {
		var timer *TimerInterceptor
		r := NewRegistry()

		err := r.Register(timer)

		var argErr *contracts.ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "interceptors[0]", argErr.Arg)
	})

	t.Run("Select", func(t *testing.T) {
		logging, _, trace, all := registered()
		r := NewRegistry()
		require.NoError(t, r.Register(all...))

		sel, err := SelectorOf(TypeOf[*LoggingInterceptor](), TypeOf[*TraceInterceptor]())
		require.NoError(t, err)

		selected, err := r.Select(sel)
		require.NoError(t, err)
		assert.Equal(t, []Interceptor{logging, trace}, selected)

		_, err = r.Select(nil)
		assert.ErrorIs(t, err, contracts.ErrInvalidArgument)
	})

	t.Run("Chain uses every registered interceptor", func(t *testing.T) {
		_, _, _, all := registered()
		r := NewRegistry()
		require.NoError(t, r.Register(all...))

		chain := r.Chain(nil)

		assert.Equal(t, all, chain.Interceptors())
	})

	t.Run("ChainFor runs only the selected interceptors", func(t *testing.T) {
		_, timer, _, all := registered()
		r := NewRegistry()
		require.NoError(t, r.Register(all...))

		sel, err := SelectorOf(TypeOf[*TimerInterceptor]())
		require.NoError(t, err)
		chain, err := r.ChainFor(sel, nil)
		require.NoError(t, err)

		_, err = chain.Invoke(context.Background(), divideKey, divide, 9, 3)
		require.NoError(t, err)

		assert.Equal(t, []Interceptor{timer}, chain.Interceptors())
		assert.Len(t, timer.Records(), 1)
	})

	t.Run("ChainForType", func(t *testing.T) {
		logging, _, _, all := registered()
		r := NewRegistry()
		require.NoError(t, r.Register(all...))

		chain := ChainForType[*LoggingInterceptor](r, nil)

		assert.Equal(t, []Interceptor{logging}, chain.Interceptors())
	})
}
