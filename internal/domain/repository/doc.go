// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL, memoria). Las implementaciones
// concretas viven en internal/store/adapters/.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los emails llegan ya normalizados (lowercase, trim) desde los services
//   - Errores de dominio están en errors.go
package repository
