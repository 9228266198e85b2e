package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

const (
	// heatmapColumnsPerRow is the number of columns inserted per heatmap row.
	heatmapColumnsPerRow = 14
	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50
	// flushTimeout is the context timeout for each flush operation.
	flushTimeout = 5 * time.Second
)

// HeatmapWriter persists heatmap rows.
type HeatmapWriter interface {
	InsertHeatmapRows(ctx context.Context, rows []domain.HeatmapRow) error
}

// FlushObserver is told about every flushed batch. May be nil.
type FlushObserver interface {
	ObserveHeatmapFlush(rows int, duration time.Duration, err error)
}

// Buffer is a channel-based buffer for non-blocking heatmap row ingestion.
type Buffer struct {
	rows   chan domain.HeatmapRow
	closed chan struct{}
	once   sync.Once
}

// NewBuffer creates a buffer with a buffered channel of the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		rows:   make(chan domain.HeatmapRow, capacity),
		closed: make(chan struct{}),
	}
}

// Send performs a non-blocking send. It returns false if the buffer is full.
func (b *Buffer) Send(row domain.HeatmapRow) bool {
	select {
	case b.rows <- row:
		return true
	default:
		return false
	}
}

// SendAll sends rows in order until the buffer fills and returns how many
// were accepted.
func (b *Buffer) SendAll(rows []domain.HeatmapRow) int {
	for i := range rows {
		if !b.Send(rows[i]) {
			return i
		}
	}
	return len(rows)
}

// Len returns the number of rows currently buffered.
func (b *Buffer) Len() int {
	return len(b.rows)
}

// Close signals the buffer to stop. It is safe to call multiple times.
func (b *Buffer) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}

// Store drains a Buffer into a HeatmapWriter in batches.
type Store struct {
	writer         HeatmapWriter
	buffer         *Buffer
	log            logger.Logger
	observer       FlushObserver
	flushInterval  time.Duration
	flushThreshold int
	wg             sync.WaitGroup
}

// NewStore creates a Store. observer may be nil.
func NewStore(
	writer HeatmapWriter,
	buffer *Buffer,
	log logger.Logger,
	observer FlushObserver,
	flushInterval time.Duration,
	flushThreshold int,
) *Store {
	return &Store{
		writer:         writer,
		buffer:         buffer,
		log:            log,
		observer:       observer,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// Start launches the background flush goroutine.
func (s *Store) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop closes the buffer and waits for the final flush.
func (s *Store) Stop() {
	s.buffer.Close()
	s.wg.Wait()
}

// flushLoop accumulates rows and flushes on threshold, on tick and on close.
func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.HeatmapRow, 0, s.flushThreshold)

	for {
		select {
		case row := <-s.buffer.rows:
			batch = append(batch, row)
			if len(batch) >= s.flushThreshold {
				s.flush(batch)
				batch = make([]domain.HeatmapRow, 0, s.flushThreshold)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = make([]domain.HeatmapRow, 0, s.flushThreshold)
			}
		case <-s.buffer.closed:
			s.drain(&batch)
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *Store) drain(batch *[]domain.HeatmapRow) {
	for {
		select {
		case row := <-s.buffer.rows:
			*batch = append(*batch, row)
		default:
			return
		}
	}
}

func (s *Store) flush(batch []domain.HeatmapRow) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	start := time.Now()
	err := s.writer.InsertHeatmapRows(ctx, batch)
	if err != nil {
		s.log.Error("Failed to insert heatmap rows",
			logger.Error(err),
			logger.Int("batch_size", len(batch)),
		)
	} else {
		s.log.Debug("Flushed heatmap rows", logger.Int("total", len(batch)))
	}

	if s.observer != nil {
		s.observer.ObserveHeatmapFlush(len(batch), time.Since(start), err)
	}
}

// InsertHeatmapRows writes rows in multi-row INSERT statements of at most
// insertBatchSize rows. The first failing chunk aborts the write.
func (r *Repository) InsertHeatmapRows(ctx context.Context, rows []domain.HeatmapRow) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := r.batchInsert(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("insert heatmap rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (r *Repository) batchInsert(ctx context.Context, rows []domain.HeatmapRow) error {
	if len(rows) == 0 {
		return nil
	}

	args := make([]any, 0, len(rows)*heatmapColumnsPerRow)
	var sb strings.Builder
	sb.WriteString("INSERT INTO heatmap_data (site_id, session_id, url, page_title, interaction_type, " +
		"x_position, y_position, scroll_depth, viewport_width, viewport_height, " +
		"element_tag, element_id, element_class, created_at) VALUES ")

	for i := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeValueTuple(&sb, i)
		row := &rows[i]
		args = append(args,
			row.SiteID, row.SessionID, row.URL, row.PageTitle, row.InteractionType,
			row.X, row.Y, row.ScrollDepth, row.ViewportWidth, row.ViewportHeight,
			row.ElementTag, row.ElementID, row.ElementClass, row.CreatedAt,
		)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}
	return nil
}

// writeValueTuple writes one ($n, ..., $n+13) placeholder tuple for rowIndex.
func writeValueTuple(sb *strings.Builder, rowIndex int) {
	base := rowIndex * heatmapColumnsPerRow
	sb.WriteByte('(')
	for col := 1; col <= heatmapColumnsPerRow; col++ {
		if col > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+col)
	}
	sb.WriteByte(')')
}
