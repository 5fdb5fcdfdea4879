package reconcile

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/mapping"
	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/payload"
)

var Module = fx.Provide(
	fx.Annotated{
		Name:   "registration",
		Target: registrationReconcilerProvider,
	},
	fx.Annotated{
		Name:   "encounter",
		Target: encounterReconcilerProvider,
	},
)

type Params struct {
	fx.In

	Extractor *payload.Extractor
	Matcher   matching.Matcher
	Master    emr.MasterData
	Directory emr.PersonDirectory
	Writer    emr.EncounterWriter
	Store     mapping.Store
	Logger    *zap.SugaredLogger
}

func registrationReconcilerProvider(p Params) Reconciler {
	return NewRegistrationReconciler(RegistrationReconcilerParams{
		Extractor: p.Extractor,
		Matcher:   p.Matcher,
		Master:    p.Master,
		Directory: p.Directory,
		Store:     p.Store,
		Logger:    p.Logger,
	})
}

func encounterReconcilerProvider(p Params) Reconciler {
	return NewEncounterReconciler(EncounterReconcilerParams{
		Extractor: p.Extractor,
		Matcher:   p.Matcher,
		Master:    p.Master,
		Directory: p.Directory,
		Writer:    p.Writer,
		Store:     p.Store,
		Logger:    p.Logger,
	})
}
