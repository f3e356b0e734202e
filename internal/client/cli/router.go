package cli

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/iudanet/fieldsync/internal/client/session"
	"github.com/iudanet/fieldsync/internal/client/upload"
	"github.com/iudanet/fieldsync/internal/models"
)

// remoteRouter отправляет поля-вложения через upload.Saver, остальные напрямую
type remoteRouter struct {
	plain       session.RemoteSaver
	attachments *upload.Saver
	fields      *xsync.MapOf[models.FieldKey, struct{}]
}

func newRemoteRouter(plain session.RemoteSaver, attachments *upload.Saver) *remoteRouter {
	return &remoteRouter{
		plain:       plain,
		attachments: attachments,
		fields:      xsync.NewMapOf[models.FieldKey, struct{}](),
	}
}

// markAttachments routes saves of key through the uploader
func (r *remoteRouter) markAttachments(key models.FieldKey) {
	r.fields.Store(key, struct{}{})
}

func (r *remoteRouter) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	if _, ok := r.fields.Load(models.FieldKey{EntityID: req.EntityID, FieldID: req.FieldID}); ok {
		return r.attachments.Save(ctx, req)
	}
	return r.plain.Save(ctx, req)
}
