package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/proxy"
)

type Translator interface {
	Translate(word string) string
}

type dictionary struct {
	lookups int
}

func (d *dictionary) Translate(word string) string {
	d.lookups++
	return "le " + word
}

func (d *dictionary) LoggedMethods() []string { return nil }

type translatorStub struct {
	proxy.Stub
	TranslateFn func(word string) string
}

func (s *translatorStub) Translate(word string) string { return s.TranslateFn(word) }

func init() {
	proxy.RegisterStub(func(m *proxy.Manager) Translator {
		s := &translatorStub{}
		if err := proxy.Populate(m, s); err != nil {
			panic(err)
		}
		return s
	})
}

func TestBootstrap_ExposedServiceIsProxied(t *testing.T) {
	tests := []struct {
		name string
		opts []DefinitionOption
	}{
		{"eager", []DefinitionOption{Exposes[Translator]()}},
		{"lazy", []DefinitionOption{Exposes[Translator](), Lazy()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := NewCatalog()
			require.NoError(t, c.Add(Service[*dictionary](tt.opts...)))

			app := ioc.New(ioc.WithPostProcessors(proxy.NewPostProcessor(proxy.NewLoggingAdvisor(nil))))
			require.NoError(t, Bootstrap(ctx, app, NewScanner(c)))

			tr, err := ioc.Get[Translator](ctx, app)
			require.NoError(t, err)
			_, proxied := proxy.ManagerOf(tr)
			assert.True(t, proxied, "interface key resolves to a proxy")

			raw, err := ioc.Get[*dictionary](ctx, app)
			require.NoError(t, err)
			_, proxied = proxy.ManagerOf(raw)
			assert.False(t, proxied, "concrete key resolves to the component itself")

			assert.Equal(t, "le chat", tr.Translate("chat"))
			assert.Equal(t, 1, raw.lookups, "the proxy delegates to the same singleton")
		})
	}
}
