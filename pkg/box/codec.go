package box

import (
	"github.com/oneconcern/pacbox/pkg/model"
)

type sectionDTO struct {
	Branch       string `json:"branch"`
	Repository   string `json:"repository"`
	Architecture string `json:"architecture"`
}

type sectionCodec struct{}

func (sectionCodec) ID(s model.Section) string { return s.String() }

func (sectionCodec) ToDTO(s model.Section) sectionDTO {
	return sectionDTO{Branch: s.Branch, Repository: s.Repository, Architecture: s.Architecture}
}

func (sectionCodec) ToEntity(d sectionDTO) (model.Section, error) {
	s := model.Section{Branch: d.Branch, Repository: d.Repository, Architecture: d.Architecture}
	return s, s.Validate()
}

type recordDTO struct {
	Section      string                                    `json:"section"`
	Name         string                                    `json:"name"`
	Descriptions map[model.PoolLocation]model.Description `json:"descriptions"`
}

type recordCodec struct{}

func (recordCodec) ID(r model.PackageRecord) string { return r.ID.String() }

func (recordCodec) ToDTO(r model.PackageRecord) recordDTO {
	return recordDTO{
		Section:      r.ID.Section.String(),
		Name:         r.ID.Name,
		Descriptions: r.Descriptions,
	}
}

func (recordCodec) ToEntity(d recordDTO) (model.PackageRecord, error) {
	section, err := model.ParseSection(d.Section)
	if err != nil {
		return model.PackageRecord{}, err
	}
	id := model.PackageID{Section: section, Name: d.Name}
	if err = id.Validate(); err != nil {
		return model.PackageRecord{}, err
	}

	record := model.NewPackageRecord(id)
	for loc, desc := range d.Descriptions {
		if !loc.Valid() {
			return model.PackageRecord{}, model.ErrInvalidPackageID.Describe("%s: unknown pool location %q", id, loc)
		}
		record.Descriptions[loc] = desc
	}
	return record, nil
}
