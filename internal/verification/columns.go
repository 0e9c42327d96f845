package verification

import (
	"gorm.io/datatypes"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
)

func docsColumn(docs []models.VerificationDocument) datatypes.JSONSlice[models.VerificationDocument] {
	if docs == nil {
		docs = []models.VerificationDocument{}
	}
	return datatypes.JSONSlice[models.VerificationDocument](docs)
}

func detailsColumn(details models.DeclaredDetails) datatypes.JSONType[models.DeclaredDetails] {
	return datatypes.NewJSONType(details)
}

func stringsColumn(values []string) datatypes.JSONSlice[string] {
	if values == nil {
		values = []string{}
	}
	return datatypes.JSONSlice[string](values)
}

func extractedColumn(fields map[string]any) datatypes.JSONMap {
	if len(fields) == 0 {
		return nil
	}
	return datatypes.JSONMap(fields)
}
