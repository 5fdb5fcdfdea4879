package reconcile

import (
	"context"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/payload"
)

type byId[T any] func(ctx context.Context, id int) (*T, error)
type byString[T any] func(ctx context.Context, value string) (*T, error)

// resolve looks a payload reference up with the finder matching its kind. Malformed references and
// kinds without a finder resolve to nil like unknown ones. Only transport errors are returned.
func resolve[T any](ctx context.Context, ref payload.Ref, id byId[T], uuid byString[T], name byString[T]) (*T, error) {
	switch ref.Kind {
	case payload.RefById:
		value, err := ref.Id()
		if err != nil || id == nil {
			return nil, nil
		}
		return id(ctx, value)
	case payload.RefByUuid:
		if uuid == nil {
			return nil, nil
		}
		return uuid(ctx, ref.Value)
	case payload.RefByName:
		if name == nil {
			return nil, nil
		}
		return name(ctx, ref.Value)
	default:
		return nil, nil
	}
}

func resolveIdentifierType(ctx context.Context, master emr.MasterData, ref payload.Ref) (*emr.IdentifierType, error) {
	return resolve[emr.IdentifierType](ctx, ref, master.IdentifierTypeById, master.IdentifierTypeByUuid, master.IdentifierTypeByName)
}

func resolveLocation(ctx context.Context, master emr.MasterData, ref payload.Ref) (*emr.Location, error) {
	return resolve[emr.Location](ctx, ref, master.LocationById, master.LocationByUuid, nil)
}

func resolveEncounterType(ctx context.Context, master emr.MasterData, ref payload.Ref) (*emr.EncounterType, error) {
	return resolve[emr.EncounterType](ctx, ref, master.EncounterTypeById, master.EncounterTypeByUuid, nil)
}

func resolveForm(ctx context.Context, master emr.MasterData, ref payload.Ref) (*emr.Form, error) {
	return resolve[emr.Form](ctx, ref, nil, master.FormByUuid, nil)
}

func resolveUser(ctx context.Context, master emr.MasterData, ref payload.Ref) (*emr.User, error) {
	return resolve[emr.User](ctx, ref, master.UserById, master.UserByUuid, master.UserByUsername)
}
