package models

import (
	"database/sql"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"CreatorStudio-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *sql.DB
var GormDB *gorm.DB

// ErrNotFound 本地库中不存在对应记录
var ErrNotFound = errors.New("record not found")

func InitDB() {
	if config.AppConfig == nil {
		log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}

	DB = db
	GormDB, err = gorm.Open(mysql.New(mysql.Config{
		Conn: DB,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("GORM 初始化失败: %v", err)
	}

	log.Println("数据库连接成功 (Native SQL + GORM)")

	// 自动建表（读取 doc/sql/CreatorStudio.sql）
	b, err := os.ReadFile("doc/sql/CreatorStudio.sql")
	if err != nil {
		log.Printf("读取 SQL 文件失败（跳过建表）: %v", err)
		return
	}
	sqls := strings.Split(string(b), ";")
	for _, s := range sqls {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := DB.Exec(s); err != nil {
			log.Printf("执行建表语句失败: %v ; sql: %s", err, s)
		}
	}
}

// Store 本地库访问入口，实现 service.LocalStore
type Store struct {
	db  *sql.DB
	gdb *gorm.DB
}

func NewStore() *Store {
	return &Store{db: DB, gdb: GormDB}
}

const projectColumns = `id, title, status, inputs, script, titles, storyboard, summary,
    cover_options, cover_options_b, cover_bg_options, cover_bg_text, module_timestamps,
    created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.Title, &p.Status, &p.Inputs, &p.Script, &p.Titles, &p.Storyboard,
		&p.Summary, &p.CoverOptions, &p.CoverOptionsB, &p.CoverBgOptions, &p.CoverBgText,
		&p.ModuleTimestamps, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProject(id string) (*Project, error) {
	row := s.db.QueryRow(`SELECT `+projectColumns+` FROM project WHERE id = ?`, id)
	return scanProject(row)
}

// SaveProject 按 id upsert，全量覆盖（时间戳由调用方维护，这里不重新打戳）
func (s *Store) SaveProject(p *Project) error {
	inputs, _ := p.Inputs.Value()
	titles, _ := p.Titles.Value()
	storyboard, _ := p.Storyboard.Value()
	covers, _ := p.CoverOptions.Value()
	coversB, _ := p.CoverOptionsB.Value()
	coverBg, _ := p.CoverBgOptions.Value()
	stamps, _ := p.ModuleTimestamps.Value()

	_, err := s.db.Exec(
		`INSERT INTO project (`+projectColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE
           title = VALUES(title), status = VALUES(status), inputs = VALUES(inputs),
           script = VALUES(script), titles = VALUES(titles), storyboard = VALUES(storyboard),
           summary = VALUES(summary), cover_options = VALUES(cover_options),
           cover_options_b = VALUES(cover_options_b), cover_bg_options = VALUES(cover_bg_options),
           cover_bg_text = VALUES(cover_bg_text), module_timestamps = VALUES(module_timestamps),
           created_at = VALUES(created_at), updated_at = VALUES(updated_at)`,
		p.ID, p.Title, p.Status, inputs, p.Script, titles, storyboard, p.Summary,
		covers, coversB, coverBg, p.CoverBgText, stamps, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// ListProjects 按 updated_at 倒序返回全部项目
func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM project ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

func (s *Store) DeleteProject(id string) error {
	_, err := s.db.Exec(`DELETE FROM project WHERE id = ?`, id)
	return err
}

// GetPrompts 读取持久化的模板覆盖项（不含默认值，合并在 models.MergePrompts 做）
func (s *Store) GetPrompts() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT node_id, template FROM prompt`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var key, tpl string
		if err := rows.Scan(&key, &tpl); err != nil {
			return nil, err
		}
		out[key] = tpl
	}
	return out, rows.Err()
}

func (s *Store) SavePrompts(overrides map[string]string) error {
	for key, tpl := range overrides {
		if _, err := s.db.Exec(
			`INSERT INTO prompt (node_id, template) VALUES (?, ?)
             ON DUPLICATE KEY UPDATE template = VALUES(template)`, key, tpl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListInspirations() ([]Inspiration, error) {
	var res []Inspiration
	if err := s.gdb.Order("created_at DESC").Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetInspiration(id string) (*Inspiration, error) {
	var insp Inspiration
	if err := s.gdb.First(&insp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &insp, nil
}

func (s *Store) SaveInspiration(insp *Inspiration) error {
	return s.gdb.Save(insp).Error
}

func (s *Store) DeleteInspiration(id string) error {
	return s.gdb.Delete(&Inspiration{}, "id = ?", id).Error
}
