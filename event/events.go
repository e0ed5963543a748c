package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/kochabonline/hartshorn/ioc"
)

// Meta 事件元数据
type Meta struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

func NewMeta() Meta {
	return Meta{ID: uuid.NewString(), At: time.Now()}
}

// EventMeta 返回事件元数据
func (m Meta) EventMeta() Meta { return m }

// Lifecycle 应用生命周期事件
type Lifecycle interface {
	EventMeta() Meta
}

// Started 组件激活完成后发布
type Started struct {
	Meta
	Context *ioc.ApplicationContext
}

func NewStarted(app *ioc.ApplicationContext) *Started {
	return &Started{Meta: NewMeta(), Context: app}
}

// Stopping 应用关闭前发布
type Stopping struct {
	Meta
	Context *ioc.ApplicationContext
}

func NewStopping(app *ioc.ApplicationContext) *Stopping {
	return &Stopping{Meta: NewMeta(), Context: app}
}
