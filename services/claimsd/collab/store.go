package collab

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/holiman/uint256"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"lockdrop/native/claims"
	"lockdrop/native/credit"
)

var (
	ErrUnknownAsset        = errors.New("collab: unknown asset")
	ErrInsufficientBalance = errors.New("collab: insufficient balance")
	ErrNotRegistered       = errors.New("collab: profile not registered")
)

// Store is the reference implementation of every external collaborator the
// claim modules consume, persisted through gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
	// mu serialises balance read-modify-write cycles on SQLite.
	mu sync.Mutex
}

// Open connects to dsn. postgres:// URLs and key=value strings containing
// host= use the postgres driver; anything else is treated as a SQLite path.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("collab: dsn required")
	}
	var dialector gorm.Dialector
	if isPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("collab: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("collab: migrate: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func isPostgres(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "host=")
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func key(addr [20]byte) string {
	return strings.ToLower(common.Address(addr).Hex())
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("collab: invalid amount %q", raw)
	}
	return v, nil
}

// IsRegistered implements claims.ProfileService.
func (s *Store) IsRegistered(user [20]byte) (bool, error) {
	var count int64
	if err := s.db.Model(&Profile{}).Where("address = ?", key(user)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Profile implements claims.ProfileService.
func (s *Store) Profile(user [20]byte) (claims.Profile, error) {
	var row Profile
	err := s.db.Where("address = ?", key(user)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return claims.Profile{}, ErrNotRegistered
	}
	if err != nil {
		return claims.Profile{}, err
	}
	return claims.Profile{TierID: row.TierID, Active: row.Active}, nil
}

// AddPoints implements claims.ProfileService.
func (s *Store) AddPoints(user [20]byte, amount uint64, campaignID uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Profile{}).Where("address = ?", key(user)).
			UpdateColumn("points", gorm.Expr("points + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotRegistered
		}
		return tx.Create(&PointGrant{Address: key(user), Amount: amount, CampaignID: campaignID}).Error
	})
}

// UpsertProfile registers or updates a profile.
func (s *Store) UpsertProfile(user [20]byte, tier uint64, active bool) error {
	row := Profile{Address: key(user), TierID: tier, Active: active}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier_id", "active", "updated_at"}),
	}).Create(&row).Error
}

// Points returns the accumulated points of user.
func (s *Store) Points(user [20]byte) (uint64, error) {
	var row Profile
	if err := s.db.Where("address = ?", key(user)).First(&row).Error; err != nil {
		return 0, err
	}
	return row.Points, nil
}

// Mint implements claims.MintingCollector.
func (s *Store) Mint(to [20]byte, metadata string, campaignID uint8) (uint64, error) {
	item := MintedItem{Owner: key(to), Metadata: metadata, CampaignID: campaignID}
	if err := s.db.Create(&item).Error; err != nil {
		return 0, err
	}
	return item.ID, nil
}

// MintedBy lists the items owned by user.
func (s *Store) MintedBy(user [20]byte) ([]MintedItem, error) {
	var items []MintedItem
	err := s.db.Where("owner = ?", key(user)).Order("id").Find(&items).Error
	return items, err
}

// Collect implements claims.TokenTransfer.
func (s *Store) Collect(from [20]byte, amount *big.Int) error {
	return s.moveBalance(from, new(big.Int).Neg(amount), "collect")
}

// Refund implements claims.TokenTransfer.
func (s *Store) Refund(to [20]byte, amount *big.Int) error {
	return s.moveBalance(to, amount, "refund")
}

func (s *Store) moveBalance(user [20]byte, delta *big.Int, direction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row Balance
		err := tx.Where("address = ?", key(user)).First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		current, err := parseAmount(row.Amount)
		if err != nil {
			return err
		}
		next := new(big.Int).Add(current, delta)
		if next.Sign() < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, new(big.Int).Neg(delta))
		}
		row.Address = key(user)
		row.Amount = next.String()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		return tx.Create(&CustodyEntry{Address: key(user), Amount: new(big.Int).Abs(delta).String(), Direction: direction}).Error
	})
}

// SetBalance overwrites the spendable balance of user.
func (s *Store) SetBalance(user [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("collab: invalid balance")
	}
	return s.db.Save(&Balance{Address: key(user), Amount: amount.String()}).Error
}

// BalanceOf returns the spendable balance of user.
func (s *Store) BalanceOf(user [20]byte) (*big.Int, error) {
	var row Balance
	err := s.db.Where("address = ?", key(user)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(row.Amount)
}

// Deposit implements claims.VaultLedger.
func (s *Store) Deposit(user [20]byte) (claims.Deposit, error) {
	var row VaultDeposit
	err := s.db.Where("address = ?", key(user)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return claims.Deposit{Shares: big.NewInt(0)}, nil
	}
	if err != nil {
		return claims.Deposit{}, err
	}
	shares, err := parseAmount(row.Shares)
	if err != nil {
		return claims.Deposit{}, err
	}
	return claims.Deposit{LastDepositedTime: row.LastDepositedTime, Shares: shares}, nil
}

// SetDeposit overwrites the vault entry of user.
func (s *Store) SetDeposit(user [20]byte, lastDeposited uint64, shares *big.Int) error {
	if shares == nil {
		shares = big.NewInt(0)
	}
	return s.db.Save(&VaultDeposit{Address: key(user), LastDepositedTime: lastDeposited, Shares: shares.String()}).Error
}

// LockRecord implements credit.LockPool. Users without a position report an
// unlocked record.
func (s *Store) LockRecord(user [20]byte) (credit.LockRecord, error) {
	var row LockPosition
	err := s.db.Where("address = ?", key(user)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return credit.LockRecord{User: user, LockedAmount: new(uint256.Int)}, nil
	}
	if err != nil {
		return credit.LockRecord{}, err
	}
	amount, err := uint256.FromDecimal(strings.TrimSpace(row.Amount))
	if err != nil {
		return credit.LockRecord{}, fmt.Errorf("collab: lock amount: %w", err)
	}
	return credit.LockRecord{
		User:          user,
		LockedAmount:  amount,
		LockStartTime: row.StartTime,
		LockEndTime:   row.EndTime,
		Locked:        row.Locked,
	}, nil
}

// SetLock overwrites the lock position of user.
func (s *Store) SetLock(user [20]byte, amount *uint256.Int, start, end uint64, locked bool) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	if locked && end < start {
		return fmt.Errorf("collab: lock end %d before start %d", end, start)
	}
	return s.db.Save(&LockPosition{Address: key(user), Amount: amount.Dec(), StartTime: start, EndTime: end, Locked: locked}).Error
}

// CategoryOf implements whitelist.CollectionResolver.
func (s *Store) CategoryOf(assetID uint64) (uint8, error) {
	var row AssetCategory
	err := s.db.Where("asset_id = ?", assetID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAsset, assetID)
	}
	if err != nil {
		return 0, err
	}
	return row.Category, nil
}

// SetCategory assigns assetID to category.
func (s *Store) SetCategory(assetID uint64, category uint8) error {
	return s.db.Save(&AssetCategory{AssetID: assetID, Category: category}).Error
}
