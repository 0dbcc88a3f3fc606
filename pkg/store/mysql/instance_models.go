package mysql

import "time"

// InstanceRecord is the GORM row shape durably persisting C8's in-memory
// Instance state: flat columns plus a JSON blob for nested structure,
// rather than normalizing ports/envs/health-check results into their own
// tables, since none of them are ever queried independently of their
// parent instance.
type InstanceRecord struct {
	ID            string `gorm:"primaryKey;column:id"`
	NovitaID      string `gorm:"column:novita_id;index"`
	Name          string `gorm:"column:name;index"`
	Status        string `gorm:"column:status;index"`
	ProductID     string `gorm:"column:product_id"`
	TemplateID    string `gorm:"column:template_id"`
	ConfigJSON    string `gorm:"column:config_json;type:text"`
	HealthJSON    string `gorm:"column:health_json;type:text"`
	WebhookURL    string `gorm:"column:webhook_url"`
	LastError     string `gorm:"column:last_error;type:text"`
	SpotStatus    string `gorm:"column:spot_status"`
	SpotReclaim   string `gorm:"column:spot_reclaim_time"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	StartedAt     *time.Time `gorm:"column:started_at"`
	ReadyAt       *time.Time `gorm:"column:ready_at"`
	FailedAt      *time.Time `gorm:"column:failed_at"`
	LastUsedAt    *time.Time `gorm:"column:last_used_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

// TableName pins the table name rather than relying on GORM's pluralization
// so a renamed Go type doesn't silently migrate to a new table.
func (InstanceRecord) TableName() string { return "instances" }
