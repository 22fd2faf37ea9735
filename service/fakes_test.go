package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"CreatorStudio-server/models"
)

// memStore 内存版 LocalStore
type memStore struct {
	mu           sync.Mutex
	projects     map[string]*models.Project
	prompts      map[string]string
	inspirations map[string]*models.Inspiration
}

func newMemStore() *memStore {
	return &memStore{
		projects:     map[string]*models.Project{},
		prompts:      map[string]string{},
		inspirations: map[string]*models.Inspiration{},
	}
}

func (m *memStore) GetProject(id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) SaveProject(p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p.Clone()
	return nil
}

func (m *memStore) ListProjects() ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Project
	for _, p := range m.projects {
		out = append(out, *p.Clone())
	}
	return out, nil
}

func (m *memStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *memStore) GetPrompts() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.prompts {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SavePrompts(overrides map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range overrides {
		m.prompts[k] = v
	}
	return nil
}

func (m *memStore) ListInspirations() ([]models.Inspiration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Inspiration
	for _, i := range m.inspirations {
		out = append(out, *i)
	}
	return out, nil
}

func (m *memStore) GetInspiration(id string) (*models.Inspiration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.inspirations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *memStore) SaveInspiration(i *models.Inspiration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *i
	m.inspirations[i.ID] = &cp
	return nil
}

func (m *memStore) DeleteInspiration(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inspirations, id)
	return nil
}

// fakeRemote 内存版 RemoteStore，可注入失败
type fakeRemote struct {
	mu          sync.Mutex
	projects    map[string]*models.Project
	fetchErr    error
	pushErr     error
	putImageErr error
	imageURL    string
	fetchHook   func() // 拉取返回前回调（锁外执行），用于构造并发交错

	fetchCalls int
	pushCalls  int
	putImages  []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{projects: map[string]*models.Project{}, imageURL: "https://img.example.com/x.png"}
}

func (r *fakeRemote) FetchProject(ctx context.Context, id string) (*models.Project, error) {
	r.mu.Lock()
	r.fetchCalls++
	fetchErr := r.fetchErr
	p, ok := r.projects[id]
	if ok {
		p = p.Clone()
	}
	hook := r.fetchHook
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *fakeRemote) PushProject(ctx context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushCalls++
	if r.pushErr != nil {
		return r.pushErr
	}
	r.projects[p.ID] = p.Clone()
	return nil
}

func (r *fakeRemote) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, id)
	return nil
}

func (r *fakeRemote) PutImage(ctx context.Context, key string, data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putImageErr != nil {
		return "", r.putImageErr
	}
	r.putImages = append(r.putImages, key)
	return r.imageURL, nil
}

// fakeGen 可编程的 Generator
type fakeGen struct {
	mu sync.Mutex

	textResult  string
	textErr     error
	textCalls   int
	jsonResults map[string]interface{} // node -> 反序列化进 out 的值
	jsonFails   map[string]int         // node -> 剩余失败次数
	jsonCalls   map[string]int
	imageData   []byte
	imageFunc   func(call int, prompt string) ([]byte, error)
	imageCalls  int
}

func newFakeGen() *fakeGen {
	return &fakeGen{
		textResult:  "generated text",
		jsonResults: map[string]interface{}{},
		jsonFails:   map[string]int{},
		jsonCalls:   map[string]int{},
		imageData:   []byte{0x89, 0x50, 0x4e, 0x47},
	}
}

func (g *fakeGen) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.textCalls++
	if g.textErr != nil {
		return "", g.textErr
	}
	return g.textResult, nil
}

func (g *fakeGen) GenerateJSON(ctx context.Context, prompt string, node string, out interface{}) error {
	g.mu.Lock()
	g.jsonCalls[node]++
	if g.jsonFails[node] > 0 {
		g.jsonFails[node]--
		g.mu.Unlock()
		return fmt.Errorf("simulated failure for %s", node)
	}
	result, ok := g.jsonResults[node]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("no fake result for %s", node)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (g *fakeGen) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	g.mu.Lock()
	g.imageCalls++
	call := g.imageCalls
	fn := g.imageFunc
	g.mu.Unlock()
	if fn != nil {
		return fn(call, prompt)
	}
	return g.imageData, nil
}

func (g *fakeGen) ImageModel() string { return "fake-image-model" }

func (g *fakeGen) totalJSONCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.jsonCalls {
		n += c
	}
	return n
}

// fullProject 所有节点都有内容的项目（用于“无事可做”场景）
func fullProject(id string) *models.Project {
	p := models.NewProject(id, "测试项目", models.ProjectInputs{Topic: "测试选题", Language: "zh"})
	p.Script = "完整脚本"
	p.Titles = models.TitleList{{Title: "标题", Keywords: "k", Score: 9}}
	p.Storyboard = models.FrameList{{ID: "f1", SceneNumber: 1, Description: "画面"}}
	p.Summary = "摘要"
	p.CoverOptions = models.CoverList{{Visual: "v", Copy: "c", Score: 8}}
	p.CoverOptionsB = models.CoverList{{Visual: "v2", Copy: "c2", Score: 7}}
	p.CoverBgOptions = models.CoverBgList{{LeftPrompt: "l", RightPrompt: "r", Score: 6}}
	return p
}

// stockResults 为所有结构化节点配好返回值
func stockResults(g *fakeGen) {
	g.jsonResults[models.NodeTitles] = []map[string]interface{}{
		{"title": "A", "keywords": "k", "score": 9},
	}
	g.jsonResults[models.NodeStoryboard] = []map[string]interface{}{
		{"originalText": "o1", "description": "d1", "imagePrompt": "特写镜头"},
		{"originalText": "o2", "description": "d2"},
	}
	g.jsonResults[models.NodeCover] = []map[string]interface{}{
		{"visual": "v", "copy": "c", "score": 8},
	}
	g.jsonResults[models.NodeCoverB] = []map[string]interface{}{
		{"visual": "v2", "copy": "c2", "score": 7},
	}
	g.jsonResults[models.NodeCoverBg] = []map[string]interface{}{
		{"leftPrompt": "l", "rightPrompt": "r", "score": 6},
	}
}
