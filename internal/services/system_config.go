package services

import (
	"strconv"

	"github.com/teamforge/teamforge/internal/models"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("`key` = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("`key` = ?", key).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("`group` = ?", group).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

type DigestConfigResponse struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (s *SystemConfigService) GetDigestSchedule() *DigestConfigResponse {
	return &DigestConfigResponse{
		Hour:   s.GetInt("digest_hour", 9),
		Minute: s.GetInt("digest_minute", 0),
	}
}

type UpdateDigestConfigRequest struct {
	Hour   *int `json:"hour" binding:"omitempty,min=0,max=23"`
	Minute *int `json:"minute" binding:"omitempty,min=0,max=59"`
}

func (s *SystemConfigService) UpdateDigestSchedule(req *UpdateDigestConfigRequest) error {
	if req.Hour != nil {
		if err := s.Set("digest_hour", strconv.Itoa(*req.Hour)); err != nil {
			return err
		}
	}
	if req.Minute != nil {
		if err := s.Set("digest_minute", strconv.Itoa(*req.Minute)); err != nil {
			return err
		}
	}
	return nil
}
