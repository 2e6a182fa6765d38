package models

import "time"

// WorkflowRecord 转写审核工作流记录
type WorkflowRecord struct {
	ID                string                 `json:"id" gorm:"primaryKey;type:varchar(64)"`
	AudioURL          string                 `json:"audioUrl" gorm:"size:1024;not null"` // 音频地址，创建后不可变
	Language          string                 `json:"language" gorm:"size:16"`            // e.g. "en-US"
	TranscriptionText string                 `json:"transcriptionText" gorm:"type:text"`
	Status            string                 `json:"status" gorm:"size:32;not null;index"`
	History           []WorkflowHistoryEntry `json:"history" gorm:"foreignKey:RecordID;references:ID"`
	CreatedAt         time.Time              `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time              `json:"updatedAt" gorm:"index"`
}

func (WorkflowRecord) TableName() string { return "workflow_records" }

// WorkflowHistoryEntry 状态变更历史，只追加不修改
type WorkflowHistoryEntry struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	RecordID   string    `json:"-" gorm:"type:varchar(64);not null;index"`
	Status     string    `json:"status" gorm:"size:32;not null"`
	Timestamp  time.Time `json:"timestamp" gorm:"not null"`
	Comment    string    `json:"comment,omitempty" gorm:"type:text"`
	ReviewedBy string    `json:"reviewedBy,omitempty" gorm:"size:64"`
}

func (WorkflowHistoryEntry) TableName() string { return "workflow_history" }
