package session

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"yuzu/internal/model"
)

func TestSession_Settings(t *testing.T) {
	Convey("设置管理", t, func() {
		ctx := context.Background()

		Convey("加载时按默认值懒创建设置", func() {
			sess, completer, _ := newTestSession(t)

			settings := sess.Settings()
			So(settings, ShouldNotBeNil)
			So(settings.Model, ShouldEqual, "gpt-4o")
			So(settings.Temperature, ShouldEqual, 0.7)
			So(settings.MaxTokens, ShouldEqual, 2000)
			So(settings.Theme, ShouldEqual, "light")
			// 密钥同步到补全客户端
			So(completer.Credential(), ShouldEqual, "sk-test")
		})

		Convey("temperature 超出 [0, 2] 被拒绝", func() {
			sess, _, _ := newTestSession(t)

			bad := 2.5
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{Temperature: &bad}), ShouldEqual, ErrInvalidTemperature)

			negative := -0.1
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{Temperature: &negative}), ShouldEqual, ErrInvalidTemperature)

			zero := 0.0
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{Temperature: &zero}), ShouldBeNil)
			So(sess.Settings().Temperature, ShouldEqual, 0.0)
		})

		Convey("max_tokens 超出 [100, 4000] 被拒绝", func() {
			sess, _, _ := newTestSession(t)

			low := 99
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{MaxTokens: &low}), ShouldEqual, ErrInvalidMaxTokens)

			high := 4001
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{MaxTokens: &high}), ShouldEqual, ErrInvalidMaxTokens)

			ok := 4000
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{MaxTokens: &ok}), ShouldBeNil)
			So(sess.Settings().MaxTokens, ShouldEqual, 4000)
		})

		Convey("theme 只接受 light 或 dark", func() {
			sess, _, _ := newTestSession(t)

			bad := "solarized"
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{Theme: &bad}), ShouldEqual, ErrInvalidTheme)

			dark := "dark"
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{Theme: &dark}), ShouldBeNil)
			So(sess.Settings().Theme, ShouldEqual, "dark")
		})

		Convey("未提供的字段保持不变", func() {
			sess, _, _ := newTestSession(t)

			m := "gpt-4o-mini"
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{Model: &m}), ShouldBeNil)

			settings := sess.Settings()
			So(settings.Model, ShouldEqual, "gpt-4o-mini")
			So(settings.Temperature, ShouldEqual, 0.7)
			So(settings.MaxTokens, ShouldEqual, 2000)
		})

		Convey("更新API密钥后重新配置补全客户端", func() {
			sess, completer, _ := newTestSession(t)

			key := "sk-new"
			So(sess.UpdateSettings(ctx, &model.UpdateSettingsRequest{APIKey: &key}), ShouldBeNil)
			So(completer.Credential(), ShouldEqual, "sk-new")
		})

		Convey("密钥校验透传补全客户端的结果", func() {
			sess, completer, _ := newTestSession(t)

			completer.valid = true
			So(sess.ValidateCredential(ctx, "sk-any"), ShouldBeTrue)

			completer.valid = false
			So(sess.ValidateCredential(ctx, "sk-any"), ShouldBeFalse)
		})
	})
}
