package app

import (
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/repos"
)

type Repos struct {
	Batch repos.BatchRepo
	Code  repos.CodeRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Batch: repos.NewBatchRepo(db, log),
		Code:  repos.NewCodeRepo(db, log),
	}
}
