package mgmtgql

import (
	"net/http"

	"github.com/bhoriuchi/graphql-go-tools/handler"

	"github.com/routerctl/routerctl/ctlapi"
)

// NewHandler builds the HTTP handler serving schema, with the
// interactive GraphiQL UI enabled for operators poking at a running
// router.
func NewHandler(d *ctlapi.Dispatcher) (http.Handler, error) {
	schema, e := NewSchema(d)
	if e != nil {
		return nil, e
	}
	return handler.New(&handler.Config{
		Schema:         &schema,
		Pretty:         true,
		GraphiQLConfig: handler.NewDefaultGraphiQLConfig(),
	}), nil
}
