// Package mq — обмен событиями жизненного цикла экземпляров через
// RabbitMQ.
//
// Engine публикует событие после каждого зафиксированного перехода
// (instance.started, instance.advanced, instance.completed и т.д.).
// Подписчики — системы уведомлений и внешние интеграции — читают
// очередь instances.events. Публикация best-effort: потеря события
// не откатывает переход.
package mq
