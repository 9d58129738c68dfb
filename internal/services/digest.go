package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/logger"
	"gorm.io/gorm"
)

// DigestService sends each user a morning summary of their open tasks on
// workdays. The schedule lives in system config so it can be changed without
// a restart taking effect on the next reload.
type DigestService struct {
	db             *gorm.DB
	cfg            *config.DigestConfig
	holidayService *HolidayService
	cronScheduler  *cron.Cron
	currentEntryID cron.EntryID
}

func NewDigestService(db *gorm.DB, cfg *config.DigestConfig, holidayService *HolidayService) *DigestService {
	return &DigestService{
		db:             db,
		cfg:            cfg,
		holidayService: holidayService,
	}
}

func (s *DigestService) StartScheduler() {
	if s.cfg == nil || !s.cfg.Enabled {
		logger.Infof("[Digest] Scheduler disabled")
		return
	}

	s.cronScheduler = cron.New()
	s.updateSchedule()
	s.cronScheduler.Start()
	logger.Infof("[Digest] Scheduler started")
}

func (s *DigestService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

func (s *DigestService) updateSchedule() {
	if s.currentEntryID != 0 {
		s.cronScheduler.Remove(s.currentEntryID)
	}

	hour, minute := s.getDigestTime()
	cronExpr := fmt.Sprintf("%d %d * * *", minute, hour)

	entryID, err := s.cronScheduler.AddFunc(cronExpr, func() {
		if err := s.SendDigests(); err != nil {
			logger.Warnf("[Digest] Run failed: %v", err)
		}
	})
	if err != nil {
		logger.Warnf("[Digest] Failed to add cron job: %v", err)
		return
	}

	s.currentEntryID = entryID
	logger.Infof("[Digest] Scheduled at %02d:%02d (cron: %s)", hour, minute, cronExpr)
}

func (s *DigestService) getDigestTime() (int, int) {
	configSvc := NewSystemConfigService(s.db)
	return configSvc.GetInt("digest_hour", 9), configSvc.GetInt("digest_minute", 0)
}

func (s *DigestService) country() string {
	if s.cfg == nil || s.cfg.Country == "" {
		return "NONE"
	}
	return s.cfg.Country
}

// SendDigests builds and dispatches one digest per user with open tasks.
// Weekends and public holidays are skipped.
func (s *DigestService) SendDigests() error {
	now := time.Now()
	if !s.holidayService.IsWorkday(now, s.country()) {
		logger.Infof("[Digest] %s is not a workday in %s, skipping", now.Format("2006-01-02"), s.country())
		return nil
	}

	var assignees []uint
	err := s.db.Model(&models.Task{}).
		Where("assigned_to IS NOT NULL AND status IN ?", []string{models.TaskStatusTodo, models.TaskStatusInProgress}).
		Distinct("assigned_to").
		Pluck("assigned_to", &assignees).Error
	if err != nil {
		return err
	}

	if len(assignees) == 0 {
		logger.Infof("[Digest] No open tasks, nothing to send")
		return nil
	}

	sent := 0
	for _, userID := range assignees {
		message, err := s.buildDigest(userID)
		if err != nil {
			logger.Warnf("[Digest] Failed to build digest for user %d: %v", userID, err)
			continue
		}
		if message == "" {
			continue
		}
		dispatchNotification(userID, message)
		sent++
	}

	logger.Infof("[Digest] Dispatched %d digests", sent)
	return nil
}

// buildDigest renders the open-task summary for one user, grouped by team.
func (s *DigestService) buildDigest(userID uint) (string, error) {
	var tasks []models.Task
	err := s.db.Preload("Team").
		Where("assigned_to = ? AND status IN ?", userID, []string{models.TaskStatusTodo, models.TaskStatusInProgress}).
		Order("team_id ASC, created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", nil
	}

	todo := 0
	inProgress := 0
	for _, t := range tasks {
		if t.Status == models.TaskStatusTodo {
			todo++
		} else {
			inProgress++
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Daily digest for %s\n", time.Now().Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("You have %d open tasks (%d to do, %d in progress):\n", len(tasks), todo, inProgress))

	lastTeam := ""
	for _, t := range tasks {
		teamName := ""
		if t.Team != nil {
			teamName = t.Team.Name
		}
		if teamName != lastTeam {
			sb.WriteString(fmt.Sprintf("\n%s:\n", teamName))
			lastTeam = teamName
		}
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", t.Status, t.Title))
	}

	return sb.String(), nil
}
