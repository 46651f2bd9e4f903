package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/xuri/excelize/v2"
)

// ReportFlow provides use cases over the delivery log: paginated listing for
// the console and Excel export for offline analysis.
type ReportFlow interface {
	ListDeliveryLog(ctx context.Context, req *dto.ListDeliveryLogRequest, metadata *ClientMetadata) (*dto.ListDeliveryLogResponse, error)
	DownloadDeliveryLogExcel(ctx context.Context, req *dto.ListDeliveryLogRequest) (string, []byte, error)
}

type ReportFlowImpl struct {
	deliveryLogRepo repository.DeliveryLogRepository
}

func NewReportFlow(deliveryLogRepo repository.DeliveryLogRepository) ReportFlow {
	return &ReportFlowImpl{deliveryLogRepo: deliveryLogRepo}
}

func (f *ReportFlowImpl) buildFilter(req *dto.ListDeliveryLogRequest) (models.DeliveryLogFilter, error) {
	var filter models.DeliveryLogFilter
	if req.CampaignID != nil && strings.TrimSpace(*req.CampaignID) != "" {
		filter.CampaignID = req.CampaignID
	}
	if req.TargetID != nil && strings.TrimSpace(*req.TargetID) != "" {
		filter.TargetID = req.TargetID
	}
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		status := models.TargetStatus(*req.Status)
		if !status.Valid() {
			return filter, NewBusinessErrorf("VALIDATION_ERROR", "Unknown status %q", nil, *req.Status)
		}
		filter.Status = &status
	}
	return filter, nil
}

func (f *ReportFlowImpl) ListDeliveryLog(ctx context.Context, req *dto.ListDeliveryLogRequest, metadata *ClientMetadata) (*dto.ListDeliveryLogResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("VALIDATION_ERROR", "Page must be at least 1", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 50
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("VALIDATION_ERROR", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter, err := f.buildFilter(req)
	if err != nil {
		return nil, err
	}

	total, err := f.deliveryLogRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LOG_QUERY_FAILED", "Failed to count delivery log rows", err)
	}

	rows, err := f.deliveryLogRepo.ByFilter(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LOG_QUERY_FAILED", "Failed to query delivery log rows", err)
	}

	out := make([]dto.DeliveryLogDTO, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, ToDeliveryLogDTO(*row))
	}

	return &dto.ListDeliveryLogResponse{Rows: out, Total: total}, nil
}

func (f *ReportFlowImpl) DownloadDeliveryLogExcel(ctx context.Context, req *dto.ListDeliveryLogRequest) (string, []byte, error) {
	filter, err := f.buildFilter(req)
	if err != nil {
		return "", nil, err
	}

	rows, err := f.deliveryLogRepo.ByFilter(ctx, filter, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("DELIVERY_LOG_QUERY_FAILED", "Failed to query delivery log rows", err)
	}
	if len(rows) == 0 {
		return "", nil, NewBusinessError("REPORT_EMPTY", "No delivery log rows match the report filter", ErrReportEmpty)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "delivery_log"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"id", "campaign_id", "target_id", "status", "occurred_at", "duration_ms", "error", "rules_text", "reasons", "forced"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, r := range rows {
		campaignID := ""
		if r.CampaignID != nil {
			campaignID = *r.CampaignID
		}
		duration := ""
		if r.DurationMs != nil {
			duration = strconv.FormatInt(*r.DurationMs, 10)
		}
		errText := ""
		if r.Error != nil {
			errText = *r.Error
		}
		rules := ""
		if r.RulesText != nil {
			rules = *r.RulesText
		}
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			campaignID,
			r.TargetID,
			r.Status.String(),
			r.OccurredAt.UTC().Format(time.RFC3339),
			duration,
			errText,
			rules,
			strings.Join(r.Reasons, "; "),
			strconv.FormatBool(r.Forced),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("delivery_log_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}
