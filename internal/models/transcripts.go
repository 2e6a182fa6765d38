package models

import "time"

// 转写来源
const (
	TranscriptSourceRemote   = "remote"
	TranscriptSourceFallback = "fallback" // 远端失败后的兜底 mock 转写
)

// Transcript 独立转写记录（不走审核工作流）
type Transcript struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	AudioURL  string    `json:"audioUrl" gorm:"size:1024;not null"`
	Language  string    `json:"language" gorm:"size:16"`
	Text      string    `json:"text" gorm:"type:text"`
	Source    string    `json:"source" gorm:"size:32"` // remote / fallback
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Transcript) TableName() string { return "transcripts" }
