package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"yuzu/internal/ai"
	"yuzu/internal/model"
)

// ---- 测试替身 ----

type fakeChatStore struct {
	mu    sync.Mutex
	chats []*model.Chat
}

func (f *fakeChatStore) Create(_ context.Context, chat *model.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chat)
	return nil
}

func (f *fakeChatStore) ListByUserID(_ context.Context, userID string) ([]*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChatStore) UpdateTitle(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.ID == id {
			c.Title = title
		}
	}
	return nil
}

func (f *fakeChatStore) Touch(_ context.Context, _ string) error { return nil }

func (f *fakeChatStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.chats {
		if c.ID == id {
			f.chats = append(f.chats[:i], f.chats[i+1:]...)
			break
		}
	}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []*model.Message
}

func (f *fakeMessageStore) Insert(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMessageStore) ListByChatID(_ context.Context, chatID string) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePersonalityStore struct {
	mu            sync.Mutex
	personalities []*model.Personality
}

func (f *fakePersonalityStore) Create(_ context.Context, p *model.Personality) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personalities = append(f.personalities, p)
	return nil
}

func (f *fakePersonalityStore) ListByUserID(_ context.Context, userID string) ([]*model.Personality, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Personality
	for _, p := range f.personalities {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePersonalityStore) Update(_ context.Context, _ string, _ *model.UpdatePersonalityRequest) error {
	return nil
}

func (f *fakePersonalityStore) Activate(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.personalities {
		if p.UserID == userID {
			p.IsActive = p.ID == id
		}
	}
	return nil
}

func (f *fakePersonalityStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.personalities {
		if p.ID == id {
			f.personalities = append(f.personalities[:i], f.personalities[i+1:]...)
			break
		}
	}
	return nil
}

type fakeSettingsStore struct {
	settings *model.Settings
}

func (f *fakeSettingsStore) FindOrCreateByUserID(_ context.Context, userID string) (*model.Settings, error) {
	if f.settings == nil {
		f.settings = &model.Settings{
			UserID:      userID,
			Model:       "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   2000,
			Theme:       "light",
			APIKey:      "sk-test",
		}
	}
	return f.settings, nil
}

func (f *fakeSettingsStore) Update(_ context.Context, _ string, _ *model.UpdateSettingsRequest) error {
	return nil
}

// fakeCompleter 可编程的补全客户端
type fakeCompleter struct {
	mu         sync.Mutex
	credential string
	valid      bool
	lastPrompt []model.PromptMessage
	lastParams ai.Params

	// stream 为 nil 时返回固定的两个片段加用量
	stream func(ctx context.Context) <-chan *ai.StreamEvent
}

func (f *fakeCompleter) SetCredential(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential = key
}

func (f *fakeCompleter) Credential() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credential
}

func (f *fakeCompleter) StreamCompletion(ctx context.Context, messages []model.PromptMessage, params ai.Params) (<-chan *ai.StreamEvent, error) {
	f.mu.Lock()
	f.lastPrompt = append([]model.PromptMessage(nil), messages...)
	f.lastParams = params
	stream := f.stream
	f.mu.Unlock()

	if stream != nil {
		return stream(ctx), nil
	}

	ch := make(chan *ai.StreamEvent, 4)
	ch <- &ai.StreamEvent{Content: "Hello"}
	ch <- &ai.StreamEvent{Content: " world"}
	ch <- &ai.StreamEvent{Usage: &model.TokenUsage{PromptTokens: 100, CompletionTokens: 150, TotalTokens: 250}}
	close(ch)
	return ch, nil
}

func (f *fakeCompleter) ValidateCredential(_ context.Context, _ string) bool {
	return f.valid
}

func (f *fakeCompleter) Prompt() []model.PromptMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

func newTestSession(t *testing.T) (*Session, *fakeCompleter, Stores) {
	t.Helper()
	stores := Stores{
		Chats:         &fakeChatStore{},
		Messages:      &fakeMessageStore{},
		Personalities: &fakePersonalityStore{},
		Settings:      &fakeSettingsStore{},
	}
	completer := &fakeCompleter{}
	sess := New("user-1", stores, completer)
	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess, completer, stores
}

// ---- 测试用例 ----

func TestSession_SendMessage(t *testing.T) {
	Convey("SendMessage 发送流水线", t, func() {
		ctx := context.Background()

		Convey("空消息和纯空白消息不触发任何动作", func() {
			sess, _, _ := newTestSession(t)

			So(sess.SendMessage(ctx, ""), ShouldEqual, ErrEmptyMessage)
			So(sess.SendMessage(ctx, "   \n\t "), ShouldEqual, ErrEmptyMessage)
			So(sess.Messages(), ShouldBeEmpty)
			So(sess.Chats(), ShouldBeEmpty)
		})

		Convey("未配置API密钥时拒绝发送", func() {
			stores := Stores{
				Chats:         &fakeChatStore{},
				Messages:      &fakeMessageStore{},
				Personalities: &fakePersonalityStore{},
				Settings:      &fakeSettingsStore{settings: &model.Settings{UserID: "user-1", Model: "gpt-4o", Theme: "light"}},
			}
			sess := New("user-1", stores, &fakeCompleter{})
			So(sess.Load(ctx), ShouldBeNil)

			So(sess.SendMessage(ctx, "hello"), ShouldEqual, ErrNoAPIKey)
		})

		Convey("无选中对话时自动创建并选中", func() {
			sess, _, stores := newTestSession(t)

			So(sess.SendMessage(ctx, "hello"), ShouldBeNil)
			So(sess.CurrentChatID(), ShouldNotBeEmpty)

			chats, err := stores.Chats.ListByUserID(ctx, "user-1")
			So(err, ShouldBeNil)
			So(len(chats), ShouldEqual, 1)
		})

		Convey("流式片段按序累积到助手消息", func() {
			sess, _, _ := newTestSession(t)

			So(sess.SendMessage(ctx, "hello"), ShouldBeNil)

			msgs := sess.Messages()
			So(len(msgs), ShouldEqual, 2)
			So(msgs[0].Role, ShouldEqual, model.RoleUser)
			So(msgs[0].Content, ShouldEqual, "hello")
			So(msgs[1].Role, ShouldEqual, model.RoleAssistant)
			So(msgs[1].Content, ShouldEqual, "Hello world")
			So(msgs[1].TokenUsage, ShouldNotBeNil)
			So(msgs[1].TokenUsage.TotalTokens, ShouldEqual, 250)
		})

		Convey("用量跨多轮发送累计", func() {
			sess, _, _ := newTestSession(t)

			So(sess.SendMessage(ctx, "first"), ShouldBeNil)
			So(sess.TotalTokens(), ShouldEqual, 250)

			So(sess.SendMessage(ctx, "second"), ShouldBeNil)
			So(sess.TotalTokens(), ShouldEqual, 500)
		})

		Convey("同一轮内后到的累计用量快照替换先前的贡献", func() {
			sess, completer, _ := newTestSession(t)
			completer.stream = func(_ context.Context) <-chan *ai.StreamEvent {
				ch := make(chan *ai.StreamEvent, 3)
				ch <- &ai.StreamEvent{Content: "partial", Usage: &model.TokenUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100}}
				ch <- &ai.StreamEvent{Content: " done"}
				ch <- &ai.StreamEvent{Usage: &model.TokenUsage{PromptTokens: 80, CompletionTokens: 170, TotalTokens: 250}}
				close(ch)
				return ch
			}

			So(sess.SendMessage(ctx, "hello"), ShouldBeNil)
			So(sess.TotalTokens(), ShouldEqual, 250)

			msgs := sess.Messages()
			So(msgs[1].TokenUsage.TotalTokens, ShouldEqual, 250)
		})

		Convey("首轮对话用首条消息派生标题", func() {
			Convey("不足50字符时原样使用", func() {
				sess, _, _ := newTestSession(t)

				So(sess.SendMessage(ctx, "hello there"), ShouldBeNil)
				So(sess.Chats()[0].Title, ShouldEqual, "hello there")
			})

			Convey("超过50字符时截断并追加省略号", func() {
				sess, _, _ := newTestSession(t)
				long := strings.Repeat("a", 60)

				So(sess.SendMessage(ctx, long), ShouldBeNil)
				So(sess.Chats()[0].Title, ShouldEqual, strings.Repeat("a", 50)+"...")
			})

			Convey("第二轮发送不再改写标题", func() {
				sess, _, _ := newTestSession(t)

				So(sess.SendMessage(ctx, "first message"), ShouldBeNil)
				So(sess.SendMessage(ctx, "second message"), ShouldBeNil)
				So(sess.Chats()[0].Title, ShouldEqual, "first message")
			})
		})

		Convey("流式失败时回滚占位消息，用户消息保留", func() {
			sess, completer, _ := newTestSession(t)
			completer.stream = func(_ context.Context) <-chan *ai.StreamEvent {
				ch := make(chan *ai.StreamEvent, 2)
				ch <- &ai.StreamEvent{Content: "partial"}
				ch <- &ai.StreamEvent{Err: errors.New("provider unavailable")}
				close(ch)
				return ch
			}

			err := sess.SendMessage(ctx, "hello")
			So(err, ShouldNotBeNil)

			msgs := sess.Messages()
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Role, ShouldEqual, model.RoleUser)
			So(sess.Generating(), ShouldBeFalse)
		})

		Convey("生成中拒绝并发发送", func() {
			sess, completer, _ := newTestSession(t)
			release := make(chan struct{})
			completer.stream = func(_ context.Context) <-chan *ai.StreamEvent {
				ch := make(chan *ai.StreamEvent)
				go func() {
					<-release
					close(ch)
				}()
				return ch
			}

			done := make(chan error, 1)
			go func() {
				done <- sess.SendMessage(ctx, "slow one")
			}()

			// 等待第一条发送占住生成标记
			for i := 0; i < 100 && !sess.Generating(); i++ {
				time.Sleep(5 * time.Millisecond)
			}
			So(sess.Generating(), ShouldBeTrue)

			So(sess.SendMessage(ctx, "too fast"), ShouldEqual, ErrGenerating)

			close(release)
			So(<-done, ShouldBeNil)
			So(sess.Generating(), ShouldBeFalse)
		})

		Convey("Stop 取消正在进行的生成并回滚", func() {
			sess, completer, _ := newTestSession(t)
			completer.stream = func(ctx context.Context) <-chan *ai.StreamEvent {
				ch := make(chan *ai.StreamEvent, 1)
				go func() {
					<-ctx.Done()
					ch <- &ai.StreamEvent{Err: ctx.Err()}
					close(ch)
				}()
				return ch
			}

			done := make(chan error, 1)
			go func() {
				done <- sess.SendMessage(ctx, "cancel me")
			}()

			for i := 0; i < 100 && !sess.Generating(); i++ {
				time.Sleep(5 * time.Millisecond)
			}
			So(sess.Generating(), ShouldBeTrue)

			sess.Stop()

			err := <-done
			So(err, ShouldNotBeNil)

			msgs := sess.Messages()
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Role, ShouldEqual, model.RoleUser)
		})
	})
}

func TestSession_AssemblePrompt(t *testing.T) {
	Convey("prompt 组装覆盖三种人格形态", t, func() {
		ctx := context.Background()

		Convey("无激活人格时按内存消息列表原样投影", func() {
			sess, completer, _ := newTestSession(t)

			So(sess.SendMessage(ctx, "hello"), ShouldBeNil)

			prompt := completer.Prompt()
			So(len(prompt), ShouldEqual, 1)
			So(prompt[0].Role, ShouldEqual, model.RoleUser)
			So(prompt[0].Content, ShouldEqual, "hello")
		})

		Convey("人格开启记忆时system消息置于完整历史之前", func() {
			sess, completer, _ := newTestSession(t)
			p, err := sess.CreatePersonality(ctx, "导师", "你是一位耐心的导师")
			So(err, ShouldBeNil)
			So(sess.SetActivePersonality(ctx, p.ID), ShouldBeNil)

			So(sess.SendMessage(ctx, "first"), ShouldBeNil)
			So(sess.SendMessage(ctx, "second"), ShouldBeNil)

			prompt := completer.Prompt()
			// system + (user, assistant, user)
			So(len(prompt), ShouldEqual, 4)
			So(prompt[0].Role, ShouldEqual, model.RoleSystem)
			So(prompt[0].Content, ShouldEqual, "你是一位耐心的导师")
			So(prompt[1].Content, ShouldEqual, "first")
			So(prompt[2].Role, ShouldEqual, model.RoleAssistant)
			So(prompt[3].Content, ShouldEqual, "second")
		})

		Convey("人格关闭记忆时只发送system消息和当前用户消息", func() {
			sess, completer, _ := newTestSession(t)
			p, err := sess.CreatePersonality(ctx, "翻译", "只翻译，不解释")
			So(err, ShouldBeNil)
			noMemory := false
			So(sess.UpdatePersonality(ctx, p.ID, &model.UpdatePersonalityRequest{HasMemory: &noMemory}), ShouldBeNil)
			So(sess.SetActivePersonality(ctx, p.ID), ShouldBeNil)

			So(sess.SendMessage(ctx, "first"), ShouldBeNil)
			So(sess.SendMessage(ctx, "second"), ShouldBeNil)

			prompt := completer.Prompt()
			So(len(prompt), ShouldEqual, 2)
			So(prompt[0].Role, ShouldEqual, model.RoleSystem)
			So(prompt[1].Role, ShouldEqual, model.RoleUser)
			So(prompt[1].Content, ShouldEqual, "second")
		})
	})
}

func TestSession_Events(t *testing.T) {
	Convey("发送过程中按序广播事件", t, func() {
		ctx := context.Background()
		sess, _, _ := newTestSession(t)

		events, cancel := sess.Subscribe()
		defer cancel()

		So(sess.SendMessage(ctx, "hello"), ShouldBeNil)

		var types []EventType
		var deltas []string
	drain:
		for {
			select {
			case ev := <-events:
				types = append(types, ev.Type)
				if ev.Type == EventMessageDelta {
					deltas = append(deltas, ev.Content)
				}
				if ev.Type == EventDone {
					break drain
				}
			case <-time.After(time.Second):
				break drain
			}
		}

		So(types[0], ShouldEqual, EventChatCreated)
		So(types[len(types)-1], ShouldEqual, EventDone)
		So(strings.Join(deltas, ""), ShouldEqual, "Hello world")
		So(types, ShouldContain, EventUsage)
		So(types, ShouldContain, EventTitleUpdated)
	})

	Convey("取消订阅后通道关闭", t, func() {
		sess, _, _ := newTestSession(t)

		events, cancel := sess.Subscribe()
		cancel()

		_, open := <-events
		So(open, ShouldBeFalse)
	})
}

func TestSession_SnapshotIsolation(t *testing.T) {
	Convey("快照与访问器返回的实体和内部状态隔离", t, func() {
		ctx := context.Background()

		Convey("修改快照不影响会话内部状态", func() {
			sess, _, _ := newTestSession(t)
			So(sess.SendMessage(ctx, "hello"), ShouldBeNil)

			snap := sess.Snapshot()
			snap.Messages[0].Content = "tampered"
			snap.Messages[1].TokenUsage.TotalTokens = 0
			snap.Chats[0].Title = "tampered"
			snap.Settings.APIKey = "tampered"

			So(sess.Messages()[0].Content, ShouldEqual, "hello")
			So(sess.Messages()[1].TokenUsage.TotalTokens, ShouldEqual, 250)
			So(sess.Chats()[0].Title, ShouldEqual, "hello")
			So(sess.Settings().APIKey, ShouldEqual, "sk-test")
		})

		Convey("事件携带的消息是追加时刻的副本", func() {
			sess, _, _ := newTestSession(t)
			events, cancel := sess.Subscribe()
			defer cancel()

			So(sess.SendMessage(ctx, "hello"), ShouldBeNil)

			var appended []*model.Message
		drain:
			for {
				select {
				case ev := <-events:
					if ev.Type == EventMessageAppended {
						appended = append(appended, ev.Message)
					}
					if ev.Type == EventDone {
						break drain
					}
				case <-time.After(time.Second):
					break drain
				}
			}

			So(len(appended), ShouldEqual, 2)
			// 占位消息事件发出时内容为空，之后的流式写入不改写已发出的事件
			So(appended[1].Role, ShouldEqual, model.RoleAssistant)
			So(appended[1].Content, ShouldBeEmpty)
		})

		Convey("生成过程中并发序列化快照", func() {
			sess, completer, _ := newTestSession(t)
			release := make(chan struct{})
			completer.stream = func(_ context.Context) <-chan *ai.StreamEvent {
				ch := make(chan *ai.StreamEvent)
				go func() {
					defer close(ch)
					for {
						select {
						case ch <- &ai.StreamEvent{Content: "x"}:
						case <-release:
							ch <- &ai.StreamEvent{Usage: &model.TokenUsage{TotalTokens: 50}}
							return
						}
					}
				}()
				return ch
			}

			done := make(chan error, 1)
			go func() {
				done <- sess.SendMessage(context.Background(), "hello")
			}()

			for i := 0; i < 100 && !sess.Generating(); i++ {
				time.Sleep(5 * time.Millisecond)
			}

			// 与流式写入并发地读取并序列化
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 200; j++ {
						if _, err := json.Marshal(sess.Snapshot()); err != nil {
							t.Error(err)
							return
						}
						for _, m := range sess.Messages() {
							_ = len(m.Content)
						}
					}
				}()
			}
			wg.Wait()
			close(release)

			So(<-done, ShouldBeNil)
			msgs := sess.Messages()
			So(msgs[len(msgs)-1].Content, ShouldNotBeEmpty)
			So(msgs[len(msgs)-1].TokenUsage.TotalTokens, ShouldEqual, 50)
			So(sess.TotalTokens(), ShouldEqual, 50)
		})
	})
}

func TestSession_DeriveTitle(t *testing.T) {
	Convey("deriveTitle 标题派生", t, func() {
		Convey("短内容原样返回", func() {
			So(deriveTitle("hello"), ShouldEqual, "hello")
		})

		Convey("恰好50字符不截断", func() {
			exact := strings.Repeat("x", 50)
			So(deriveTitle(exact), ShouldEqual, exact)
		})

		Convey("超长内容按字符截断，多字节字符不会被切坏", func() {
			long := strings.Repeat("中", 60)
			So(deriveTitle(long), ShouldEqual, strings.Repeat("中", 50)+"...")
		})
	})
}
