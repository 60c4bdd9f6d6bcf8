package versions

import (
	"log"

	"github.com/Sayeeda346/sampledb/federation/schema"

	"gorm.io/gorm"
)

func migrateUsers(txn *gorm.DB) error {
	log.Println("migrating table 'users'")

	type User struct {
		FedId       *int `gorm:"uniqueIndex:idx_users_fed"`
		ComponentId *int `gorm:"uniqueIndex:idx_users_fed"`
	}

	// Earlier deployments indexed fed_id and component_id separately, which
	// does not enforce uniqueness of the pair.
	for _, idx := range []string{"ix_users_fed_id", "ix_users_component_id"} {
		if txn.Migrator().HasIndex(&User{}, idx) {
			if err := txn.Migrator().DropIndex(&User{}, idx); err != nil {
				return err
			}
		}
	}

	if err := txn.Migrator().CreateIndex(&User{}, "idx_users_fed"); err != nil {
		return err
	}

	log.Println("table 'users' migration complete")

	return nil
}

func Migration_1_federated_identities(txn *gorm.DB) error {
	log.Println("adding identity linking tables")

	if err := migrateUsers(txn); err != nil {
		return err
	}

	err := txn.Migrator().AutoMigrate(
		&schema.FederatedIdentity{}, &schema.UserAlias{},
	)
	if err != nil {
		return err
	}

	log.Println("identity linking migration complete")

	return nil
}
