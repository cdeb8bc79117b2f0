package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/render"
)

func newRegistry(t *testing.T) *render.Registry {
	t.Helper()
	r := render.NewRegistry()
	require.NoError(t, r.Register(render.Template{
		Event:   "order.shipped",
		Locale:  "en",
		Version: 1,
		Subject: "Order {{.order_id}} shipped",
		Text:    "Your order {{.order_id}} is on its way.",
		HTML:    "<p>Your order <b>{{.order_id}}</b> is on its way.</p>",
	}))
	return r
}

func TestRegistry_Render(t *testing.T) {
	r := newRegistry(t)

	got, err := r.Render("order.shipped", "en", map[string]any{"order_id": "A-17"})
	require.NoError(t, err)

	assert.Equal(t, "Order A-17 shipped", got.Title)
	assert.Equal(t, "Your order A-17 is on its way.", got.Text)
	assert.Equal(t, "<p>Your order <b>A-17</b> is on its way.</p>", got.HTML)
}

func TestRegistry_HTMLEscaping(t *testing.T) {
	r := newRegistry(t)

	got, err := r.Render("order.shipped", "en", map[string]any{"order_id": "<script>"})
	require.NoError(t, err)

	assert.NotContains(t, got.HTML, "<script>")
	assert.Contains(t, got.Text, "<script>")
}

func TestRegistry_LocaleFallback(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Register(render.Template{
		Event:   "order.shipped",
		Locale:  "de",
		Version: 1,
		Subject: "Bestellung {{.order_id}} versandt",
		Text:    "Ihre Bestellung {{.order_id}} ist unterwegs.",
		HTML:    "<p>Ihre Bestellung {{.order_id}} ist unterwegs.</p>",
	}))

	t.Run("regional variant falls back to base language", func(t *testing.T) {
		got, err := r.Render("order.shipped", "de-AT", map[string]any{"order_id": "B-2"})
		require.NoError(t, err)
		assert.Equal(t, "Bestellung B-2 versandt", got.Title)
	})

	t.Run("unknown locale falls back to default", func(t *testing.T) {
		got, err := r.Render("order.shipped", "fr", map[string]any{"order_id": "B-2"})
		require.NoError(t, err)
		assert.Equal(t, "Order B-2 shipped", got.Title)
	})

	t.Run("underscore locale is normalized", func(t *testing.T) {
		got, err := r.Render("order.shipped", "de_DE", map[string]any{"order_id": "B-2"})
		require.NoError(t, err)
		assert.Equal(t, "Bestellung B-2 versandt", got.Title)
	})
}

func TestRegistry_MissingTemplate(t *testing.T) {
	r := render.NewRegistry()

	_, err := r.Render("unknown.event", "en", nil)
	require.Error(t, err)

	var renderErr *render.Error
	assert.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "unknown.event", renderErr.Event)
}

func TestRegistry_Register_Invalid(t *testing.T) {
	r := render.NewRegistry()

	t.Run("empty event", func(t *testing.T) {
		err := r.Register(render.Template{Locale: "en"})
		assert.ErrorIs(t, err, render.ErrInvalidTemplate)
	})

	t.Run("broken template syntax", func(t *testing.T) {
		err := r.Register(render.Template{
			Event:   "x",
			Locale:  "en",
			Subject: "{{.unclosed",
		})
		assert.ErrorIs(t, err, render.ErrInvalidTemplate)
	})
}

func TestRegistry_Version(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, 1, r.Version("order.shipped"))
	assert.Equal(t, 0, r.Version("unknown"))

	require.NoError(t, r.Register(render.Template{
		Event:   "order.shipped",
		Locale:  "en",
		Version: 3,
		Subject: "s",
		Text:    "t",
		HTML:    "h",
	}))
	assert.Equal(t, 3, r.Version("order.shipped"))
}

func TestRegistry_Locale(t *testing.T) {
	r := render.NewRegistry()
	assert.Equal(t, "de-AT", r.Locale("de_AT"))
	assert.Equal(t, "en", r.Locale(""))
	assert.Equal(t, "en", r.Locale("not a locale"))
}
