package collab

import (
	"time"

	"gorm.io/gorm"
)

// Profile is a registered user of the profile service.
type Profile struct {
	Address   string `gorm:"primaryKey;size:42"`
	TierID    uint64 `gorm:"not null"`
	Active    bool   `gorm:"not null"`
	Points    uint64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PointGrant records each point accrual for auditing.
type PointGrant struct {
	ID         uint   `gorm:"primaryKey"`
	Address    string `gorm:"size:42;index"`
	Amount     uint64
	CampaignID uint64 `gorm:"index"`
	CreatedAt  time.Time
}

// LockPosition mirrors a lock pool record. Amounts are decimal strings.
type LockPosition struct {
	Address   string `gorm:"primaryKey;size:42"`
	Amount    string `gorm:"size:80;not null"`
	StartTime uint64
	EndTime   uint64
	Locked    bool
	UpdatedAt time.Time
}

// VaultDeposit mirrors a vault ledger entry.
type VaultDeposit struct {
	Address           string `gorm:"primaryKey;size:42"`
	LastDepositedTime uint64
	Shares            string `gorm:"size:80"`
	UpdatedAt         time.Time
}

// Balance is the spendable token balance used to pay claim costs.
type Balance struct {
	Address   string `gorm:"primaryKey;size:42"`
	Amount    string `gorm:"size:80;not null"`
	UpdatedAt time.Time
}

// CustodyEntry records every cost collected or refunded.
type CustodyEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Address   string `gorm:"size:42;index"`
	Amount    string `gorm:"size:80"`
	Direction string `gorm:"size:8"`
	CreatedAt time.Time
}

// MintedItem is a collectible issued by the minting collector.
type MintedItem struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Owner      string `gorm:"size:42;index"`
	Metadata   string `gorm:"size:512"`
	CampaignID uint8  `gorm:"index"`
	CreatedAt  time.Time
}

// AssetCategory maps a listed asset to its whitelist category.
type AssetCategory struct {
	AssetID  uint64 `gorm:"primaryKey;autoIncrement:false"`
	Category uint8  `gorm:"not null"`
}

// AutoMigrate performs all schema migrations for the collaborator store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&PointGrant{},
		&LockPosition{},
		&VaultDeposit{},
		&Balance{},
		&CustodyEntry{},
		&MintedItem{},
		&AssetCategory{},
	)
}
