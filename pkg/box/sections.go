package box

import (
	"context"

	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

const sectionsTable = "sections"

// SectionRepository persists the known sections
type SectionRepository = bdgr.Repository[model.Section, sectionDTO]

// NewSectionRepository opens the repository of known sections
func NewSectionRepository(env *bdgr.Env) *SectionRepository {
	return bdgr.NewRepository[model.Section, sectionDTO](env, sectionsTable, sectionCodec{})
}

// SeedSections registers sections, in one unit of work. Already known sections are left unchanged.
func SeedSections(ctx context.Context, env *bdgr.Env, repo *SectionRepository, sections ...model.Section) error {
	_, err := env.Update(ctx, func(uow *bdgr.UnitOfWork) error {
		for _, section := range sections {
			if err := section.Validate(); err != nil {
				return status.ErrInvalidArgument.Wrap(err)
			}
			if err := repo.Add(ctx, uow, section); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}
