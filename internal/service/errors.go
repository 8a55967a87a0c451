package service

import "errors"

// Sentinel-ошибки сервисного слоя.
// Обработчики API транслируют их в HTTP-статусы.
var (
	// ErrNotFound — запрошенный объект не существует или недоступен.
	ErrNotFound = errors.New("объект не найден")
	// ErrValidation — входные данные не прошли валидацию.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — операция запрещена для текущего пользователя.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrConsentRequired — заявка подана без согласия на обработку данных.
	ErrConsentRequired = errors.New("требуется согласие на обработку персональных данных")
	// ErrJobOfferClosed — вакансия не опубликована и не принимает заявки.
	ErrJobOfferClosed = errors.New("вакансия не принимает заявки")
	// ErrJobOfferFull — достигнут лимит заявок на вакансию по тарифу.
	ErrJobOfferFull = errors.New("достигнут лимит заявок на вакансию")
	// ErrQuotaExceeded — месячная квота AI-анализов исчерпана.
	ErrQuotaExceeded = errors.New("квота AI-анализов исчерпана")
	// ErrNoSubscription — у компании нет активной подписки.
	ErrNoSubscription = errors.New("нет активной подписки")
	// ErrAlreadyAnalyzing — анализ заявки уже запущен или завершён.
	ErrAlreadyAnalyzing = errors.New("анализ уже запущен")
	// ErrMissingCV — к заявке не прикреплён документ CV.
	ErrMissingCV = errors.New("к заявке не прикреплён CV")
	// ErrInvalidTransition — запрошенный переход статуса недопустим.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
)
