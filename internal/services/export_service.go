package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/models"
)

const (
	exportSheet     = "Transactions"
	exportBatchSize = 500
	exportMaxRange  = 92 * 24 * time.Hour
)

var exportHeader = []interface{}{
	"ID", "User ID", "Nickname", "Type", "Amount", "Balance Before", "Balance After", "Market ID", "Description", "Created At",
}

// ExportService renders ledger data as spreadsheets
type ExportService struct {
	db  *gorm.DB
	loc *time.Location
}

func NewExportService(db *gorm.DB, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{db: db, loc: loc}
}

type exportRow struct {
	models.PointTransaction
	Nickname *string
}

// WriteTransactionsXLSX streams point transactions created in [from, to) to w
func (s *ExportService) WriteTransactionsXLSX(ctx context.Context, w io.Writer, from, to time.Time) (int, error) {
	if !to.After(from) {
		return 0, apperrors.Validation("export range end must be after its start")
	}
	if to.Sub(from) > exportMaxRange {
		return 0, apperrors.Validation("export range must be at most 92 days")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("failed to open sheet writer: %w", err)
	}
	if err := sw.SetRow("A1", exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	written := 0
	var lastID uint
	for {
		var rows []exportRow
		err := s.db.WithContext(ctx).Table("point_transactions").
			Select("point_transactions.*, users.nickname").
			Joins("LEFT JOIN users ON users.id = point_transactions.user_id").
			Where("point_transactions.created_at >= ? AND point_transactions.created_at < ?", from.UTC(), to.UTC()).
			Where("point_transactions.id > ?", lastID).
			Order("point_transactions.id ASC").
			Limit(exportBatchSize).
			Scan(&rows).Error
		if err != nil {
			return 0, fmt.Errorf("failed to load transactions: %w", err)
		}

		for _, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, written+2)
			if err != nil {
				return 0, err
			}
			if err := sw.SetRow(cell, s.values(r)); err != nil {
				return 0, fmt.Errorf("failed to write row: %w", err)
			}
			written++
			lastID = r.ID
		}

		if len(rows) < exportBatchSize {
			break
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return written, nil
}

func (s *ExportService) values(r exportRow) []interface{} {
	nickname := ""
	if r.Nickname != nil {
		nickname = *r.Nickname
	}
	var marketID interface{} = ""
	if r.MarketID != nil {
		marketID = *r.MarketID
	}
	return []interface{}{
		r.ID,
		r.UserID,
		nickname,
		string(r.TransactionType),
		r.Amount,
		r.BalanceBefore,
		r.BalanceAfter,
		marketID,
		r.Description,
		r.CreatedAt.In(s.loc).Format("2006-01-02 15:04:05"),
	}
}
