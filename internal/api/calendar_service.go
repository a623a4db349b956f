package api

import (
	"context"
	"time"

	"github.com/matheus3301/typec/internal/calendar"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const dateLayout = "2006-01-02"

// Holidays is a loaded holiday feed.
type Holidays interface {
	Index() calendar.Index
	Load(ctx context.Context) calendar.Index
}

// CalendarService implements the CalendarService gRPC service.
type CalendarService struct {
	feed Holidays
	now  func() time.Time
}

// NewCalendarService creates a new calendar service.
func NewCalendarService(feed Holidays) *CalendarService {
	return &CalendarService{feed: feed, now: time.Now}
}

func (s *CalendarService) Holidays(_ context.Context, req *HolidaysRequest) (*HolidaysResponse, error) {
	day := s.now()
	if req.Date != "" {
		t, err := time.ParseInLocation(dateLayout, req.Date, time.Local)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "date %q: want YYYY-MM-DD", req.Date)
		}
		day = t
	}
	return &HolidaysResponse{
		Date:     day.Format(dateLayout),
		Holidays: toHolidays(s.feed.Index().On(day)),
	}, nil
}

func (s *CalendarService) Month(_ context.Context, req *MonthRequest) (*MonthResponse, error) {
	year, month := req.Year, req.Month
	if year == 0 && month == 0 {
		now := s.now()
		year, month = now.Year(), int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "month %d out of range", month)
	}
	days := s.feed.Index().Month(year, time.Month(month))
	resp := &MonthResponse{Year: year, Month: month, Days: make(map[int][]Holiday, len(days))}
	for d, entries := range days {
		resp.Days[d] = toHolidays(entries)
	}
	return resp, nil
}

func (s *CalendarService) Reload(ctx context.Context, _ *Empty) (*ReloadResponse, error) {
	return &ReloadResponse{Dates: s.feed.Load(ctx).Len()}, nil
}
