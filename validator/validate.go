package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTrans "github.com/go-playground/validator/v10/translations/en"
	zhTrans "github.com/go-playground/validator/v10/translations/zh"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/log"
)

// DefaultLanguage 默认的错误翻译语言
const DefaultLanguage = "en"

var (
	Validate *validator.Validate
	TransEn  ut.Translator
	TransZh  ut.Translator

	uni *ut.UniversalTranslator
)

func init() {
	Validate = validator.New()
	uni = ut.New(en.New(), en.New(), zh.New())
	TransEn, _ = uni.GetTranslator("en")
	TransZh, _ = uni.GetTranslator("zh")

	if err := enTrans.RegisterDefaultTranslations(Validate, TransEn); err != nil {
		log.Errorf("[validator] | register en translations: %v", err)
	}
	if err := zhTrans.RegisterDefaultTranslations(Validate, TransZh); err != nil {
		log.Errorf("[validator] | register zh translations: %v", err)
	}

	// 错误信息中使用 label > json > mapstructure 作为字段名
	Validate.RegisterTagNameFunc(fieldName)
}

func fieldName(fld reflect.StructField) string {
	if label := fld.Tag.Get("label"); label != "" {
		return label
	}
	for _, tag := range []string{"json", "mapstructure"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func RegisterValidation(tag string, fn validator.Func) error {
	return Validate.RegisterValidation(tag, fn)
}

func RegisterTranslation(tag string, trans ut.Translator, registerFn validator.RegisterTranslationsFunc, translationFn validator.TranslationFunc) error {
	return Validate.RegisterTranslation(tag, trans, registerFn, translationFn)
}

// Translator 按语言查找翻译器, 如 zh-CN 回退到 zh, 未知语言使用英文
func Translator(language string) ut.Translator {
	language = strings.ToLower(language)
	if t, ok := uni.GetTranslator(language); ok {
		return t
	}
	if base, _, found := strings.Cut(language, "-"); found {
		if t, ok := uni.GetTranslator(base); ok {
			return t
		}
	}
	return TransEn
}

// Struct 使用默认语言校验结构体
func Struct(target any) error {
	return StructTrans(target, DefaultLanguage)
}

// StructTrans 校验结构体, 校验失败时返回翻译后的配置错误
func StructTrans(target any, language string) error {
	err := Validate.Struct(target)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	trans := Translator(language)
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fe.Translate(trans))
	}
	return errors.Config("%s", strings.Join(messages, "; ")).WithCause(err)
}
