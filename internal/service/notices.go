package service

import (
	"fmt"
	"strings"
)

// User-facing notices are bilingual, keyed by the user's language code
// prefix. Operator-facing notices are English only.

func isZH(lang string) bool {
	return strings.HasPrefix(lang, "zh")
}

func pick(lang, zh, en string) string {
	if isZH(lang) {
		return zh
	}
	return en
}

func blockedNotice(lang string) string {
	return pick(lang,
		"🚫 您已被管理员屏蔽，无法发送消息。",
		"🚫 You have been blocked by the operator and cannot send messages.")
}

func unblockedNotice(lang string) string {
	return pick(lang,
		"🎉 您已被管理员解除屏蔽，现在可以正常发送消息了。",
		"🎉 You have been unblocked and can send messages again.")
}

func keywordNotice(lang, keyword string) string {
	return pick(lang,
		fmt.Sprintf("⚠️ 您的消息包含被屏蔽的关键词 (%s)，未被转发给管理员。", keyword),
		fmt.Sprintf("⚠️ Your message contains a blocked keyword (%s) and was not forwarded to the operator.", keyword))
}

func forwardFailedNotice(lang string) string {
	return pick(lang,
		"抱歉，您的消息未能成功转发给管理员，请稍后再试。",
		"Sorry, your message could not be forwarded to the operator. Please try again later.")
}

func verifiedNotice(lang string) string {
	return pick(lang,
		"✅ 验证通过！现在您可以正常发送消息了。",
		"✅ Verified! You can now send messages normally.")
}

func wrongAnswerNotice(lang string) string {
	return pick(lang,
		"❌ 答案不正确，请重试新的验证。",
		"❌ Wrong answer. Please try the new challenge.")
}

func challengeGoneNotice(lang string) string {
	return pick(lang,
		"验证失败或已过期，请重新发送消息以获取验证。",
		"Verification failed or expired. Please send a message again to get a new challenge.")
}

func simplePrompt(lang string) string {
	return pick(lang,
		"🛡 为了防止骚扰，请先完成一次验证：点击下方按钮。",
		"🛡 To prevent spam, please complete a quick verification: tap the button below.")
}

func simpleButtonLabel(lang string) string {
	return pick(lang, "✅ 我是人类", "✅ I'm human")
}

func arithmeticPrompt(lang, expression string) string {
	return pick(lang,
		fmt.Sprintf("🛡 请计算并选择正确答案：%s", expression),
		fmt.Sprintf("🛡 Solve and pick the correct answer: %s", expression))
}

func imagePrompt(lang string) string {
	return pick(lang,
		"🛡 请输入图片中显示的验证码。",
		"🛡 Please type the code shown in the image.")
}

func defaultWelcome(lang string) string {
	return pick(lang, "欢迎。", "Welcome.")
}
