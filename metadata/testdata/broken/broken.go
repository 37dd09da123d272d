package broken

import (
	"github.com/not/exist/base"
	missing "example.invalid/pkg/v3"
)

func init() {
	panic("must never run")
}

type Widget struct {
	*base.Model
	_ struct{} `neve:"@Repository(widgets) @Lazy"`
}

var _ missing.Store = &Widget{}

//neve:@Bean(name=widgetFactory, primary=true)
func (w *Widget) Build() *Widget {
	return base.Unknown(w)
}

func (w *Widget) hidden() {}
